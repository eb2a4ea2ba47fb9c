// Package store is the MySQL persistence layer behind the back-office API.
package store

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict rejects a backwards status transition or a
	// concurrent update that already moved the order on.
	ErrStatusConflict = errors.New("order status transition not allowed")
)

type Store struct {
	db *sqlx.DB
}

// Open connects to MySQL. The DSN must carry parseTime=true so DATETIME
// columns scan into time.Time.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	db.SetMaxOpenConns(16)
	return &Store{db: db}, nil
}

func New(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }
