package google

import (
	"fmt"
	"strings"
	"time"

	"cashflow/internal/core"
)

var headers = []string{"Date", "Breakfast", "Lunch", "Dinner", "Other", "AutoFilled", "RecordedAt"}

func headerRow() []any {
	out := make([]any, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

func headersMatch(row []any) bool {
	got := toStrings(row)
	if len(got) < len(headers) {
		return false
	}
	for i, h := range headers {
		if !strings.EqualFold(got[i], h) {
			return false
		}
	}
	return true
}

// parseSpendRows converts data rows (header excluded) into logs. Rows with
// an unreadable date are skipped; the last row for a date wins.
func parseSpendRows(values [][]any) []core.DailySpendLog {
	byDate := make(map[string]core.DailySpendLog, len(values))
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		d, err := parseSheetDate(cols[0])
		if err != nil {
			continue
		}
		entry := core.DailySpendLog{
			Date:       d,
			Breakfast:  asAmount(safeGet(cols, 1)),
			Lunch:      asAmount(safeGet(cols, 2)),
			Dinner:     asAmount(safeGet(cols, 3)),
			Other:      asAmount(safeGet(cols, 4)),
			AutoFilled: asBool(safeGet(cols, 5)),
			RecordedAt: asTime(safeGet(cols, 6)),
		}
		byDate[d.String()] = entry
	}
	out := make([]core.DailySpendLog, 0, len(byDate))
	for _, l := range byDate {
		out = append(out, l)
	}
	core.SortSpendLogs(out)
	return out
}

func serializeSpendLog(l core.DailySpendLog, loc *time.Location) []any {
	recorded := ""
	if !l.RecordedAt.IsZero() {
		recorded = l.RecordedAt.In(loc).Format(time.RFC3339)
	}
	return []any{
		l.Date.String(),
		l.Breakfast,
		l.Lunch,
		l.Dinner,
		l.Other,
		l.AutoFilled,
		recorded,
	}
}

func parseSheetDate(s string) (core.Date, error) {
	if d, err := core.ParseDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse("2006/01/02", s); err == nil {
		return core.DateOf(t), nil
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDateFormat, s)
}

// asAmount treats blank or unreadable cells as zero.
func asAmount(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := core.ParseAmount(s)
	if err != nil {
		return 0
	}
	return v
}

func asBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}

func asTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
