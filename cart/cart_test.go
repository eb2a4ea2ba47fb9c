package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timlee789/pos-sub000/catalog"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Categories: []catalog.Category{
			{ID: "c1", Name: "Entrees"},
			{ID: "c2", Name: "Sides"},
		},
		Items: []catalog.MenuItem{
			{
				ID: "burger", Name: "Cheeseburger", Price: 8.00,
				Category: "Entrees", IsAvailable: true, PosVisible: true,
			},
			{
				ID: "shake", Name: "Milkshake", Price: 5.00,
				Category: "Entrees", IsAvailable: true, PosVisible: true,
				ModifierGroups:        []string{"Shake Size", "Shake Flavor"},
				RequiresFlavorAndSize: true,
			},
			{
				ID: "plate", Name: "Chicken Plate", PosName: "Chx Plate", Price: 12.50,
				Category: "Entrees", IsAvailable: true, PosVisible: true,
				Description:     "served with fries and a drink",
				IsSpecialBundle: true,
			},
			{
				ID: "catfish", Name: "Catfish Special", Price: 11.00,
				Category: "Entrees", IsAvailable: true, PosVisible: true,
				DayOfWeekSpecial: "Friday",
			},
			{ID: "ff", Name: "1/2 FF", Price: 2.50, Category: "Sides", IsAvailable: true, PosVisible: true},
			{ID: "drink", Name: "Soft Drink", Price: 1.95, Category: "Sides", IsAvailable: true, PosVisible: true},
		},
		ModifierGroups: map[string]catalog.ModifierGroup{
			"Shake Size": {Name: "Shake Size", Options: []catalog.ModifierOption{
				{Name: "Small", Price: 0}, {Name: "Large", Price: 1.50},
			}},
			"Shake Flavor": {Name: "Shake Flavor", Options: []catalog.ModifierOption{
				{Name: "Vanilla"}, {Name: "Chocolate"},
			}},
		},
	}
}

func newTestCart(t *testing.T) *Cart {
	t.Helper()
	c := New(testCatalog(), Rates{Tax: 0.07, CardFee: 0.03})
	// a Monday, so the Friday special is unavailable
	c.SetClock(func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) })
	return c
}

func mustFind(t *testing.T, c *Cart, key string) catalog.MenuItem {
	t.Helper()
	item, ok := c.catalog.FindItem(key)
	require.True(t, ok, "item %s not in test catalog", key)
	return item
}

func TestCardTotalsMath(t *testing.T) {
	c := newTestCart(t)
	_, err := c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)

	totals := c.Totals(true)
	assert.InDelta(t, 8.00, totals.Subtotal, 1e-9)
	assert.InDelta(t, 0.56, totals.Tax, 1e-9)
	assert.InDelta(t, 0.2568, totals.CardFee, 1e-9)
	assert.InDelta(t, 8.8168, totals.GrandTotal, 1e-9)

	// tip percentages apply to subtotal+tax, never to the card fee
	assert.InDelta(t, 8.56, c.TipBase(), 1e-9)
	assert.InDelta(t, 1.284, c.TipBase()*0.15, 1e-9)
}

func TestCashTotalsHaveNoCardFee(t *testing.T) {
	c := newTestCart(t)
	_, err := c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)

	totals := c.Totals(false)
	assert.Zero(t, totals.CardFee)
	assert.InDelta(t, 8.56, totals.GrandTotal, 1e-9)
}

func TestTotalsArePure(t *testing.T) {
	c := newTestCart(t)
	_, err := c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)

	first := c.Totals(true)
	second := c.Totals(true)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Size())
}

func TestFlavorAndSizeRequired(t *testing.T) {
	c := newTestCart(t)
	shake := mustFind(t, c, "shake")

	_, err := c.AddItem(shake, nil)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.True(t, c.IsEmpty(), "rejected add must not mutate the cart")

	// size alone is still missing the flavor
	_, err = c.AddItem(shake, []catalog.ModifierOption{{Name: "Large", Price: 1.50}})
	require.ErrorAs(t, err, &validation)
	assert.True(t, c.IsEmpty())

	added, err := c.AddItem(shake, []catalog.ModifierOption{
		{Name: "Large", Price: 1.50},
		{Name: "Chocolate"},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.InDelta(t, 6.50, added[0].TotalPrice, 1e-9)
}

func TestDayOfWeekSpecialRejectedOffDay(t *testing.T) {
	c := newTestCart(t)
	_, err := c.AddItem(mustFind(t, c, "catfish"), nil)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Reason, "Friday")

	c.SetClock(func() time.Time { return time.Date(2024, 7, 5, 12, 0, 0, 0, time.UTC) })
	_, err = c.AddItem(mustFind(t, c, "catfish"), nil)
	assert.NoError(t, err)
}

func TestBundleExpandsAndRemovesAtomically(t *testing.T) {
	c := newTestCart(t)
	added, err := c.AddItem(mustFind(t, c, "plate"), nil)
	require.NoError(t, err)
	require.Len(t, added, 3)

	groupID := added[0].GroupID
	require.NotEmpty(t, groupID)
	assert.Equal(t, "Chx Plate", added[0].Name)
	assert.Equal(t, "(Set) 1/2 FF", added[1].Name)
	assert.Equal(t, "(Set) Soft Drink", added[2].Name)
	for _, line := range added {
		assert.Equal(t, groupID, line.GroupID)
	}

	// children are free; only the parent charges
	assert.InDelta(t, 12.50, c.Subtotal(), 1e-9)

	// removing any member removes the whole bundle
	require.NoError(t, c.RemoveLine(added[2].ID))
	assert.True(t, c.IsEmpty())
}

func TestRemoveSingleLineLeavesOthers(t *testing.T) {
	c := newTestCart(t)
	first, err := c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)
	_, err = c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)

	require.NoError(t, c.RemoveLine(first[0].ID))
	assert.Equal(t, 1, c.Size())

	assert.ErrorIs(t, c.RemoveLine("nope"), ErrLineNotFound)
}

func TestFrozenCartRejectsMutation(t *testing.T) {
	c := newTestCart(t)
	added, err := c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)

	c.Freeze()
	_, err = c.AddItem(mustFind(t, c, "burger"), nil)
	assert.ErrorIs(t, err, ErrCartFrozen)
	assert.ErrorIs(t, c.RemoveLine(added[0].ID), ErrCartFrozen)
	assert.ErrorIs(t, c.SetNote(added[0].ID, "no onions"), ErrCartFrozen)

	// totals still readable while frozen
	assert.InDelta(t, 8.00, c.Totals(false).Subtotal, 1e-9)

	c.Clear()
	assert.True(t, c.IsEmpty())
	_, err = c.AddItem(mustFind(t, c, "burger"), nil)
	assert.NoError(t, err, "clear must unfreeze")
}

func TestSetNote(t *testing.T) {
	c := newTestCart(t)
	added, err := c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)

	require.NoError(t, c.SetNote(added[0].ID, "extra pickles"))
	assert.Equal(t, "extra pickles", c.Lines()[0].Note)
}

func TestRestoreReplacesContent(t *testing.T) {
	c := newTestCart(t)
	_, err := c.AddItem(mustFind(t, c, "burger"), nil)
	require.NoError(t, err)

	recalled := []Line{
		{ID: "l1", ItemID: "plate", Name: "Chx Plate", TotalPrice: 12.50, Quantity: 1},
	}
	require.NoError(t, c.Restore(recalled))
	require.Equal(t, 1, c.Size())
	assert.InDelta(t, 12.50, c.Subtotal(), 1e-9)

	c.Freeze()
	assert.ErrorIs(t, c.Restore(recalled), ErrCartFrozen)
}
