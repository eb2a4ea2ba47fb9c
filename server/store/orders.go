package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/timlee789/pos-sub000/cart"
	"github.com/timlee789/pos-sub000/orders"
)

type orderRow struct {
	ID            string    `db:"id"`
	OrderNumber   int64     `db:"order_number"`
	Items         []byte    `db:"items"`
	Subtotal      float64   `db:"subtotal"`
	Tax           float64   `db:"tax"`
	Tip           float64   `db:"tip"`
	Total         float64   `db:"total"`
	PaymentMethod string    `db:"payment_method"`
	TransactionID string    `db:"transaction_id"`
	OrderType     string    `db:"order_type"`
	TableNumber   string    `db:"table_number"`
	EmployeeName  string    `db:"employee_name"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r orderRow) toOrder() (orders.Order, error) {
	var items []cart.Line
	if len(r.Items) > 0 {
		if err := json.Unmarshal(r.Items, &items); err != nil {
			return orders.Order{}, errors.Wrapf(err, "decode items of order %s", r.ID)
		}
	}
	return orders.Order{
		ID:            r.ID,
		OrderNumber:   r.OrderNumber,
		Items:         items,
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		Tip:           r.Tip,
		Total:         r.Total,
		PaymentMethod: orders.PaymentMethod(r.PaymentMethod),
		TransactionID: r.TransactionID,
		OrderType:     orders.OrderType(r.OrderType),
		TableNumber:   r.TableNumber,
		EmployeeName:  r.EmployeeName,
		Status:        orders.Status(r.Status),
		CreatedAt:     r.CreatedAt,
	}, nil
}

// CreateOrder inserts a new order; the order number comes from the
// AUTO_INCREMENT column.
func (s *Store) CreateOrder(ctx context.Context, o orders.Order) (orders.CreateResult, error) {
	id := o.ID
	if id == "" {
		id = uuid.NewString()
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return orders.CreateResult{}, errors.Wrap(err, "encode order items")
	}
	if o.Status == "" {
		o.Status = orders.StatusOpen
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders
			(id, items, subtotal, tax, tip, total, payment_method, transaction_id,
			 order_type, table_number, employee_name, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, items, o.Subtotal, o.Tax, o.Tip, o.Total, string(o.PaymentMethod),
		o.TransactionID, string(o.OrderType), o.TableNumber, o.EmployeeName, string(o.Status))
	if err != nil {
		return orders.CreateResult{}, errors.Wrap(err, "insert order")
	}

	var number int64
	if err := s.db.GetContext(ctx, &number,
		`SELECT order_number FROM orders WHERE id = ?`, id); err != nil {
		return orders.CreateResult{}, errors.Wrap(err, "read order number")
	}
	return orders.CreateResult{OrderID: id, OrderNumber: number}, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM orders WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return orders.Order{}, ErrNotFound
	}
	if err != nil {
		return orders.Order{}, errors.Wrap(err, "get order")
	}
	return row.toOrder()
}

// UpdateOrder applies a patch with a forward-only status guard. The UPDATE
// is conditioned on the status read here, so a concurrent writer that moved
// the order first wins and this call returns ErrStatusConflict.
func (s *Store) UpdateOrder(ctx context.Context, id string, patch orders.Patch) (orders.Order, error) {
	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	if patch.Status != "" && !current.Status.CanBecome(patch.Status) {
		return orders.Order{}, errors.Wrapf(ErrStatusConflict,
			"%s -> %s", current.Status, patch.Status)
	}

	set := "updated_at = CURRENT_TIMESTAMP"
	args := []interface{}{}
	if patch.Status != "" {
		set += ", status = ?"
		args = append(args, string(patch.Status))
	}
	if patch.PaymentMethod != "" {
		set += ", payment_method = ?"
		args = append(args, string(patch.PaymentMethod))
	}
	if patch.TransactionID != "" {
		set += ", transaction_id = ?"
		args = append(args, patch.TransactionID)
	}
	if patch.Tip != nil {
		set += ", tip = ?"
		args = append(args, *patch.Tip)
	}
	if patch.Total != nil {
		set += ", total = ?"
		args = append(args, *patch.Total)
	}
	args = append(args, id, string(current.Status))

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET `+set+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return orders.Order{}, errors.Wrap(err, "update order")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return orders.Order{}, errors.Wrap(err, "update order result")
	}
	if affected == 0 {
		return orders.Order{}, ErrStatusConflict
	}
	return s.GetOrder(ctx, id)
}

// ListOrders returns the most recent orders, newest first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]orders.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM orders ORDER BY created_at DESC, order_number DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	out := make([]orders.Order, 0, len(rows))
	for _, r := range rows {
		o, err := r.toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// MarkStaleFailed flips `processing` orders older than the cutoff to
// `failed`. Run by the reconcile endpoint; a crashed terminal otherwise
// leaves its order stuck forever.
func (s *Store) MarkStaleFailed(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE status = ? AND created_at < ?`,
		string(orders.StatusFailed), string(orders.StatusProcessing), cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "mark stale orders failed")
	}
	swept, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "stale sweep result")
	}
	return swept, nil
}
