package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/timlee789/pos-sub000/catalog"
	"github.com/timlee789/pos-sub000/employee"
)

// AuthenticateEmployee resolves a PIN to an employee. A miss is ErrNotFound.
func (s *Store) AuthenticateEmployee(ctx context.Context, pin string) (employee.Employee, error) {
	var row struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
		Role string `db:"role"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, role FROM employees WHERE pin_code = ?`, pin)
	if err == sql.ErrNoRows {
		return employee.Employee{}, ErrNotFound
	}
	if err != nil {
		return employee.Employee{}, errors.Wrap(err, "authenticate employee")
	}
	return employee.Employee{ID: row.ID, Name: row.Name, Role: row.Role}, nil
}

// Settings returns the store settings as a flat name/value map.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Name  string `db:"name"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT name, value FROM store_settings`); err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Value
	}
	return out, nil
}

type menuItemRow struct {
	ID                    string         `db:"id"`
	Name                  string         `db:"name"`
	PosName               string         `db:"pos_name"`
	Price                 float64        `db:"price"`
	Category              string         `db:"category"`
	Description           sql.NullString `db:"description"`
	ImageURL              string         `db:"image_url"`
	ModifierGroups        []byte         `db:"modifier_groups"`
	SortOrder             int            `db:"sort_order"`
	IsAvailable           bool           `db:"is_available"`
	KioskVisible          bool           `db:"kiosk_visible"`
	PosVisible            bool           `db:"pos_visible"`
	DayOfWeekSpecial      string         `db:"day_of_week_special"`
	IsSpecialBundle       bool           `db:"is_special_bundle"`
	BundleItems           []byte         `db:"bundle_items"`
	RequiresFlavorAndSize bool           `db:"requires_flavor_and_size"`
}

// Menu assembles the full catalog from the menu tables. Visibility filtering
// is the terminal's concern; the endpoint serves everything.
func (s *Store) Menu(ctx context.Context) (*catalog.Catalog, error) {
	var catRows []struct {
		ID        string `db:"id"`
		Name      string `db:"name"`
		SortOrder int    `db:"sort_order"`
	}
	err := s.db.SelectContext(ctx, &catRows,
		`SELECT id, name, sort_order FROM menu_categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, errors.Wrap(err, "load categories")
	}

	var itemRows []menuItemRow
	err = s.db.SelectContext(ctx, &itemRows,
		`SELECT * FROM menu_items ORDER BY sort_order, name`)
	if err != nil {
		return nil, errors.Wrap(err, "load menu items")
	}

	var groupRows []struct {
		Name    string `db:"name"`
		Options []byte `db:"options"`
	}
	err = s.db.SelectContext(ctx, &groupRows,
		`SELECT name, options FROM modifier_groups`)
	if err != nil {
		return nil, errors.Wrap(err, "load modifier groups")
	}

	cat := &catalog.Catalog{ModifierGroups: make(map[string]catalog.ModifierGroup, len(groupRows))}
	for _, r := range catRows {
		cat.Categories = append(cat.Categories, catalog.Category{
			ID: r.ID, Name: r.Name, SortOrder: r.SortOrder,
		})
	}
	for _, r := range itemRows {
		item := catalog.MenuItem{
			ID:                    r.ID,
			Name:                  r.Name,
			PosName:               r.PosName,
			Price:                 r.Price,
			Category:              r.Category,
			Description:           r.Description.String,
			ImageURL:              r.ImageURL,
			SortOrder:             r.SortOrder,
			IsAvailable:           r.IsAvailable,
			KioskVisible:          r.KioskVisible,
			PosVisible:            r.PosVisible,
			DayOfWeekSpecial:      r.DayOfWeekSpecial,
			IsSpecialBundle:       r.IsSpecialBundle,
			RequiresFlavorAndSize: r.RequiresFlavorAndSize,
		}
		if len(r.ModifierGroups) > 0 {
			if err := json.Unmarshal(r.ModifierGroups, &item.ModifierGroups); err != nil {
				return nil, errors.Wrapf(err, "decode modifier groups of %s", r.Name)
			}
		}
		if len(r.BundleItems) > 0 {
			if err := json.Unmarshal(r.BundleItems, &item.BundleItems); err != nil {
				return nil, errors.Wrapf(err, "decode bundle items of %s", r.Name)
			}
		}
		cat.Items = append(cat.Items, item)
	}
	for _, r := range groupRows {
		var opts []catalog.ModifierOption
		if err := json.Unmarshal(r.Options, &opts); err != nil {
			return nil, errors.Wrapf(err, "decode options of group %s", r.Name)
		}
		cat.ModifierGroups[r.Name] = catalog.ModifierGroup{Name: r.Name, Options: opts}
	}
	return cat, nil
}

// MethodTotals is one closing-report line.
type MethodTotals struct {
	PaymentMethod string  `db:"payment_method" json:"payment_method"`
	Count         int64   `db:"cnt" json:"count"`
	Sales         float64 `db:"sales" json:"sales"`
	Tips          float64 `db:"tips" json:"tips"`
}

// ClosingReport aggregates paid and refunded orders since the opening time,
// per payment method.
func (s *Store) ClosingReport(ctx context.Context, since time.Time) ([]MethodTotals, error) {
	var rows []MethodTotals
	err := s.db.SelectContext(ctx, &rows,
		`SELECT payment_method,
		        COUNT(*) AS cnt,
		        COALESCE(SUM(total), 0) AS sales,
		        COALESCE(SUM(tip), 0) AS tips
		   FROM orders
		  WHERE status IN ('paid', 'refunded') AND created_at >= ?
		  GROUP BY payment_method`, since)
	if err != nil {
		return nil, errors.Wrap(err, "closing report")
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PaymentMethod < rows[j].PaymentMethod })
	return rows, nil
}
