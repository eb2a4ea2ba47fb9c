package catalog

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CSV column layout of the offline menu source. Modifier group names and
// bundle children are |-separated inside their cells.
var csvHeader = []string{
	"category", "name", "pos_name", "price", "description",
	"modifier_groups", "day_of_week_special", "is_special_bundle",
	"bundle_items", "requires_flavor_and_size",
}

// LoadCSV reads the alternate file-based menu source. All items loaded this
// way are available and visible on both surfaces; modifier group definitions
// must come from a separate fetch or be registered afterwards.
func LoadCSV(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open menu csv")
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range csvHeader[:4] {
		if _, ok := col[required]; !ok {
			return nil, errors.Errorf("menu csv missing column %q", required)
		}
	}

	cat := &Catalog{ModifierGroups: map[string]ModifierGroup{}}
	seenCategories := map[string]bool{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		line++

		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		price, err := strconv.ParseFloat(get("price"), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad price on csv line %d", line)
		}

		category := get("category")
		if !seenCategories[category] {
			seenCategories[category] = true
			cat.Categories = append(cat.Categories, Category{
				ID:        category,
				Name:      category,
				SortOrder: len(cat.Categories),
			})
		}

		cat.Items = append(cat.Items, MenuItem{
			ID:                    get("name"),
			Name:                  get("name"),
			PosName:               get("pos_name"),
			Price:                 price,
			Category:              category,
			Description:           get("description"),
			ModifierGroups:        splitList(get("modifier_groups")),
			SortOrder:             len(cat.Items),
			IsAvailable:           true,
			KioskVisible:          true,
			PosVisible:            true,
			DayOfWeekSpecial:      get("day_of_week_special"),
			IsSpecialBundle:       get("is_special_bundle") == "true",
			BundleItems:           splitList(get("bundle_items")),
			RequiresFlavorAndSize: get("requires_flavor_and_size") == "true",
		})
	}
	return cat, nil
}

func splitList(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
