package store

import (
	"context"

	"github.com/pkg/errors"
)

// Idempotent bootstrap; the service owns its schema and re-running every
// statement on startup is safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id CHAR(36) NOT NULL,
		order_number BIGINT NOT NULL AUTO_INCREMENT,
		items JSON NOT NULL,
		subtotal DECIMAL(10,2) NOT NULL DEFAULT 0,
		tax DECIMAL(10,2) NOT NULL DEFAULT 0,
		tip DECIMAL(10,2) NOT NULL DEFAULT 0,
		total DECIMAL(10,2) NOT NULL DEFAULT 0,
		payment_method VARCHAR(16) NOT NULL DEFAULT '',
		transaction_id VARCHAR(128) NOT NULL DEFAULT '',
		order_type VARCHAR(16) NOT NULL DEFAULT '',
		table_number VARCHAR(64) NOT NULL DEFAULT '',
		employee_name VARCHAR(64) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_order_number (order_number),
		KEY idx_status_created (status, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		id BIGINT NOT NULL AUTO_INCREMENT,
		name VARCHAR(64) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'staff',
		pin_code VARCHAR(16) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_pin (pin_code)
	)`,
	`CREATE TABLE IF NOT EXISTS store_settings (
		name VARCHAR(64) NOT NULL,
		value VARCHAR(255) NOT NULL,
		PRIMARY KEY (name)
	)`,
	`CREATE TABLE IF NOT EXISTS menu_categories (
		id CHAR(36) NOT NULL,
		name VARCHAR(64) NOT NULL,
		sort_order INT NOT NULL DEFAULT 0,
		PRIMARY KEY (id),
		UNIQUE KEY uq_category_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id CHAR(36) NOT NULL,
		name VARCHAR(128) NOT NULL,
		pos_name VARCHAR(64) NOT NULL DEFAULT '',
		price DECIMAL(10,2) NOT NULL DEFAULT 0,
		category VARCHAR(64) NOT NULL,
		description TEXT,
		image_url VARCHAR(255) NOT NULL DEFAULT '',
		modifier_groups JSON,
		sort_order INT NOT NULL DEFAULT 0,
		is_available TINYINT(1) NOT NULL DEFAULT 1,
		kiosk_visible TINYINT(1) NOT NULL DEFAULT 1,
		pos_visible TINYINT(1) NOT NULL DEFAULT 1,
		day_of_week_special VARCHAR(16) NOT NULL DEFAULT '',
		is_special_bundle TINYINT(1) NOT NULL DEFAULT 0,
		bundle_items JSON,
		requires_flavor_and_size TINYINT(1) NOT NULL DEFAULT 0,
		PRIMARY KEY (id)
	)`,
	`CREATE TABLE IF NOT EXISTS modifier_groups (
		name VARCHAR(64) NOT NULL,
		options JSON NOT NULL,
		PRIMARY KEY (name)
	)`,
}

func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "bootstrap schema")
		}
	}
	return nil
}
