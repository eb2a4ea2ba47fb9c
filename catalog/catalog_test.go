package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() *Catalog {
	return &Catalog{
		Items: []MenuItem{
			{ID: "plate", Name: "Chicken Plate", Description: "comes with fries and a drink", IsSpecialBundle: true},
			{ID: "plate2", Name: "Shrimp Plate", Description: "w/d and 1/2 ff", IsSpecialBundle: true},
			{ID: "declared", Name: "Combo", IsSpecialBundle: true, BundleItems: []string{"Soft Drink"}},
			{ID: "plain", Name: "Cheeseburger", Description: "with fries"},
			{ID: "ff", Name: "1/2 FF"},
			{ID: "drink", Name: "Soft Drink"},
		},
		ModifierGroups: map[string]ModifierGroup{},
	}
}

func TestBundleChildrenFromKeywords(t *testing.T) {
	c := sampleCatalog()

	children := c.BundleChildren(c.Items[0])
	require.Len(t, children, 2)
	assert.Equal(t, "1/2 FF", children[0].Name)
	assert.Equal(t, "Soft Drink", children[1].Name)

	// "w/d" and "ff" shorthand hit the same sides
	children = c.BundleChildren(c.Items[1])
	require.Len(t, children, 2)
}

func TestDeclaredBundleItemsWinOverKeywords(t *testing.T) {
	c := sampleCatalog()
	children := c.BundleChildren(c.Items[2])
	require.Len(t, children, 1)
	assert.Equal(t, "Soft Drink", children[0].Name)
}

func TestNonBundleHasNoChildren(t *testing.T) {
	c := sampleCatalog()
	// keyword in the description is not enough without the bundle flag
	assert.Empty(t, c.BundleChildren(c.Items[3]))
}

func TestBundleMissingSideIsSkipped(t *testing.T) {
	c := &Catalog{
		Items: []MenuItem{
			{ID: "plate", Name: "Chicken Plate", Description: "with fries and a drink", IsSpecialBundle: true},
			{ID: "drink", Name: "Soft Drink"},
		},
		ModifierGroups: map[string]ModifierGroup{},
	}
	children := c.BundleChildren(c.Items[0])
	require.Len(t, children, 1, "absent fries item attaches nothing")
	assert.Equal(t, "Soft Drink", children[0].Name)
}

func TestAvailableOn(t *testing.T) {
	special := MenuItem{Name: "Catfish", DayOfWeekSpecial: "Friday"}
	assert.True(t, AvailableOn(special, time.Friday))
	assert.False(t, AvailableOn(special, time.Monday))
	assert.True(t, AvailableOn(MenuItem{Name: "Burger"}, time.Monday))
}

func TestRequiredSelections(t *testing.T) {
	shake := MenuItem{
		Name:                  "Milkshake",
		ModifierGroups:        []string{"Shake Size", "Shake Flavor", "Extras"},
		RequiresFlavorAndSize: true,
	}
	c := sampleCatalog()
	assert.Equal(t, []string{"Shake Size", "Shake Flavor"}, c.RequiredSelections(shake))

	shake.RequiresFlavorAndSize = false
	assert.Empty(t, c.RequiredSelections(shake))
}

func TestFetchFiltersAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/menu", r.URL.Path)
		require.Equal(t, "kiosk", r.URL.Query().Get("mode"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"categories": []Category{
				{ID: "c2", Name: "Sides", SortOrder: 2},
				{ID: "c1", Name: "Entrees", SortOrder: 1},
			},
			"items": []MenuItem{
				{ID: "b", Name: "Burger", SortOrder: 2, KioskVisible: true, PosVisible: true},
				{ID: "hidden", Name: "Staff Meal", SortOrder: 0, KioskVisible: false, PosVisible: true},
				{ID: "a", Name: "Wings", SortOrder: 1, KioskVisible: true, PosVisible: true},
			},
			"modifier_groups": map[string]ModifierGroup{
				"Sauce": {Name: "Sauce", Options: []ModifierOption{{Name: "Hot"}}},
			},
		})
	}))
	defer srv.Close()

	cat, err := NewClient(srv.URL).Fetch(context.Background(), ModeKiosk)
	require.NoError(t, err)

	require.Len(t, cat.Items, 2, "kiosk-hidden items are filtered out")
	assert.Equal(t, "Wings", cat.Items[0].Name)
	assert.Equal(t, "Burger", cat.Items[1].Name)
	assert.Equal(t, "Entrees", cat.Categories[0].Name)

	_, ok := cat.Group("Sauce")
	assert.True(t, ok)
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Fetch(context.Background(), ModePos)
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	input := `category,name,pos_name,price,description,modifier_groups,day_of_week_special,is_special_bundle,bundle_items,requires_flavor_and_size
Entrees,Chicken Plate,Chx Plate,12.50,with fries and a drink,,,true,1/2 FF|Soft Drink,false
Entrees,Milkshake,,5.00,,Shake Size|Shake Flavor,,false,,true
Sides,1/2 FF,,2.50,,,,false,,false
Specials,Catfish,,11.00,,,Friday,false,,false
`
	cat, err := parseCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, cat.Items, 4)
	require.Len(t, cat.Categories, 3)
	assert.Equal(t, []string{"Entrees", "Sides", "Specials"},
		[]string{cat.Categories[0].Name, cat.Categories[1].Name, cat.Categories[2].Name})

	plate := cat.Items[0]
	assert.Equal(t, "Chx Plate", plate.PosName)
	assert.True(t, plate.IsSpecialBundle)
	assert.Equal(t, []string{"1/2 FF", "Soft Drink"}, plate.BundleItems)
	assert.InDelta(t, 12.50, plate.Price, 1e-9)

	shake := cat.Items[1]
	assert.True(t, shake.RequiresFlavorAndSize)
	assert.Equal(t, []string{"Shake Size", "Shake Flavor"}, shake.ModifierGroups)

	assert.Equal(t, "Friday", cat.Items[3].DayOfWeekSpecial)

	// declared children resolve against the loaded rows
	children := cat.BundleChildren(plate)
	require.Len(t, children, 1, "only the fries row exists in this file")
	assert.Equal(t, "1/2 FF", children[0].Name)
}

func TestParseCSVRejectsMissingColumns(t *testing.T) {
	_, err := parseCSV(strings.NewReader("name,price\nBurger,8.00\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
}

func TestParseCSVRejectsBadPrice(t *testing.T) {
	input := "category,name,pos_name,price\nEntrees,Burger,,free\n"
	_, err := parseCSV(strings.NewReader(input))
	assert.Error(t, err)
}
