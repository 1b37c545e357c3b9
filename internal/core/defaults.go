package core

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Category selects one of the three daily-default tables.
type Category string

const (
	CategoryWeekday  Category = "weekday"
	CategorySaturday Category = "saturday"
	CategorySunday   Category = "sunday"
)

// mealOrder puts the usual meals first when listing a table.
var mealOrder = map[string]int{"breakfast": 0, "lunch": 1, "dinner": 2}

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryWeekday, CategorySaturday, CategorySunday:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// CategoryFor maps Monday-Friday to weekday, then Saturday and Sunday.
func CategoryFor(d Date) Category {
	switch d.Weekday() {
	case time.Saturday:
		return CategorySaturday
	case time.Sunday:
		return CategorySunday
	default:
		return CategoryWeekday
	}
}

// Table returns the live mapping for c; callers must not mutate it.
func (dd DailyDefaults) Table(c Category) map[string]int64 {
	switch c {
	case CategorySaturday:
		return dd.Saturday
	case CategorySunday:
		return dd.Sunday
	default:
		return dd.Weekday
	}
}

// CostForDate returns the default spend total for d and a copy of the
// itemized table it came from.
func (dd DailyDefaults) CostForDate(d Date) (int64, map[string]int64) {
	table := dd.Table(CategoryFor(d))
	breakdown := make(map[string]int64, len(table))
	var total int64
	for item, amount := range table {
		breakdown[item] = amount
		total += amount
	}
	return total, breakdown
}

// Clone deep-copies all three tables.
func (dd DailyDefaults) Clone() DailyDefaults {
	return DailyDefaults{
		Weekday:  copyTable(dd.Weekday),
		Saturday: copyTable(dd.Saturday),
		Sunday:   copyTable(dd.Sunday),
	}
}

// WithOverrides resolves "category.item" patches on top of a copy of dd.
// Malformed keys are skipped; dd itself is never modified.
func (dd DailyDefaults) WithOverrides(overrides map[string]int64) DailyDefaults {
	out := dd.Clone()
	for key, amount := range overrides {
		category, item, err := SplitOverrideKey(key)
		if err != nil {
			slog.Warn("Ignoring daily default override", "key", key, "error", err)
			continue
		}
		switch category {
		case CategoryWeekday:
			out.Weekday[item] = amount
		case CategorySaturday:
			out.Saturday[item] = amount
		case CategorySunday:
			out.Sunday[item] = amount
		}
	}
	return out
}

// OverrideKey builds the persisted "category.item" key.
func OverrideKey(c Category, item string) string {
	return string(c) + "." + item
}

func SplitOverrideKey(key string) (Category, string, error) {
	raw, item, ok := strings.Cut(key, ".")
	if !ok || strings.TrimSpace(item) == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidOverrideKey, key)
	}
	category, err := ParseCategory(raw)
	if err != nil {
		return "", "", err
	}
	return category, item, nil
}

// ItemNames lists table keys with breakfast, lunch and dinner first and the
// rest alphabetically.
func ItemNames(table map[string]int64) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := mealOrder[names[i]]
		oj, jok := mealOrder[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	return names
}

func copyTable(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
