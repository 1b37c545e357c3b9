package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSafeDate(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		want  Date
	}{
		{"valid day", 2024, time.March, 15, NewDate(2024, 3, 15)},
		{"feb 30 leap", 2024, time.February, 30, NewDate(2024, 2, 29)},
		{"feb 31 non-leap", 2023, time.February, 31, NewDate(2023, 2, 28)},
		{"april 31", 2024, time.April, 31, NewDate(2024, 4, 30)},
		{"month overflow", 2024, 13, 31, NewDate(2025, 1, 31)},
		{"month underflow", 2024, 0, 31, NewDate(2023, 12, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeDate(tt.year, tt.month, tt.day)
			if err != nil {
				t.Fatalf("SafeDate() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("SafeDate() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := SafeDate(2024, time.January, 0); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("SafeDate(day=0) error = %v, want ErrInvalidDay", err)
	}
}

func TestFirstDayOfNextMonthAndTenth(t *testing.T) {
	if got := FirstDayOfNextMonth(NewDate(2024, 12, 25)); !got.Equal(NewDate(2025, 1, 1)) {
		t.Errorf("FirstDayOfNextMonth(dec) = %s", got)
	}
	if got := FirstDayOfNextMonth(NewDate(2024, 1, 31)); !got.Equal(NewDate(2024, 2, 1)) {
		t.Errorf("FirstDayOfNextMonth(jan 31) = %s", got)
	}

	tests := []struct {
		in, want Date
	}{
		{NewDate(2024, 3, 1), NewDate(2024, 3, 10)},
		{NewDate(2024, 3, 10), NewDate(2024, 3, 10)},
		{NewDate(2024, 3, 11), NewDate(2024, 4, 10)},
		{NewDate(2024, 12, 20), NewDate(2025, 1, 10)},
	}
	for _, tt := range tests {
		if got := UpcomingTenth(tt.in); !got.Equal(tt.want) {
			t.Errorf("UpcomingTenth(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestResolveIncomeDate(t *testing.T) {
	tests := []struct {
		name   string
		anchor Date
		day    int
		want   Date
	}{
		{"same month later day", NewDate(2024, 1, 10), 25, NewDate(2024, 1, 25)},
		{"same day", NewDate(2024, 1, 25), 25, NewDate(2024, 1, 25)},
		{"earlier day rolls to next month", NewDate(2024, 1, 25), 5, NewDate(2024, 2, 5)},
		{"jan 31 into leap february", NewDate(2024, 1, 31), 30, NewDate(2024, 2, 29)},
		{"jan 31 into february", NewDate(2023, 1, 31), 30, NewDate(2023, 2, 28)},
		{"same month clamped", NewDate(2024, 2, 1), 31, NewDate(2024, 2, 29)},
		{"december rolls into january", NewDate(2024, 12, 20), 1, NewDate(2025, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveIncomeDate(tt.anchor, tt.day); !got.Equal(tt.want) {
				t.Errorf("ResolveIncomeDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveCycleStart(t *testing.T) {
	tests := []struct {
		name   string
		today  Date
		anchor int
		length int
		want   Date
		// extendedTo is the last day covered when the cycle absorbs the
		// days before the next anchor; zero means start+length-1.
		extendedTo Date
	}{
		{"before anchor uses previous month", NewDate(2024, 2, 10), 25, 30, NewDate(2024, 1, 25), Date{}},
		{"before anchor late in month", NewDate(2024, 2, 20), 25, 30, NewDate(2024, 1, 25), Date{}},
		{"on anchor", NewDate(2024, 2, 25), 25, 30, NewDate(2024, 2, 25), Date{}},
		{"last day of cycle", NewDate(2024, 2, 23), 25, 30, NewDate(2024, 1, 25), Date{}},
		{"boundary start+length rolls forward", NewDate(2024, 1, 8), 1, 7, NewDate(2024, 1, 8), Date{}},
		{"day after 31-day month extends cycle", NewDate(2024, 2, 24), 25, 30, NewDate(2024, 1, 25), NewDate(2024, 2, 24)},
		{"last day of 31-day month extends cycle", NewDate(2024, 1, 31), 1, 30, NewDate(2024, 1, 1), NewDate(2024, 1, 31)},
		{"short cycle tail folds into previous", NewDate(2024, 1, 29), 1, 7, NewDate(2024, 1, 22), NewDate(2024, 1, 31)},
		{"anchor clamped in short month", NewDate(2023, 2, 28), 31, 30, NewDate(2023, 2, 28), Date{}},
		{"anchor 31 before clamp day", NewDate(2023, 2, 27), 31, 30, NewDate(2023, 1, 31), Date{}},
		{"january wraps to december", NewDate(2024, 1, 3), 25, 30, NewDate(2023, 12, 25), Date{}},
		{"short cycles repeat from anchor", NewDate(2024, 1, 20), 1, 7, NewDate(2024, 1, 15), Date{}},
		{"zero anchor defaults to first", NewDate(2024, 5, 9), 0, 30, NewDate(2024, 5, 1), Date{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveCycleStart(tt.today, tt.anchor, tt.length)
			if !got.Equal(tt.want) {
				t.Fatalf("ResolveCycleStart() = %s, want %s", got, tt.want)
			}
			end := got.AddDays(tt.length - 1)
			if !tt.extendedTo.IsZero() {
				end = tt.extendedTo
			}
			if tt.today.Before(got) || tt.today.After(end) {
				t.Errorf("today %s outside [%s, %s]", tt.today, got, end)
			}
		})
	}
}

func TestResolveCycleStart_NoOneDayCycles(t *testing.T) {
	// Walking every day of a year, a start only changes on an anchor date
	// or a whole cycle length after the previous start.
	const anchor, length = 25, 30
	prev := ResolveCycleStart(NewDate(2024, 1, 1), anchor, length)
	for d := NewDate(2024, 1, 2); d.Year() == 2024; d = d.AddDays(1) {
		got := ResolveCycleStart(d, anchor, length)
		if got.Equal(prev) {
			continue
		}
		if !got.Equal(d) {
			t.Fatalf("start for %s = %s, want a new cycle to start that day", d, got)
		}
		if d.Day() != anchor && prev.DaysUntil(d) != length {
			t.Fatalf("cycle %s lasted %d days before %s", prev, prev.DaysUntil(d), d)
		}
		prev = got
	}
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		D Date            `json:"d"`
		M map[string]Date `json:"m"`
	}
	in := wrapper{D: NewDate(2024, 2, 29), M: map[string]Date{"x": NewDate(2024, 1, 1)}}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-02-29","m":{"x":"2024-01-01"}}` {
		t.Fatalf("unexpected json %s", b)
	}
	var out wrapper
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.D.Equal(in.D) || !out.M["x"].Equal(in.M["x"]) {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	var bad Date
	if err := json.Unmarshal([]byte(`"29/02/2024"`), &bad); !errors.Is(err, ErrInvalidDateFormat) {
		t.Fatalf("expected ErrInvalidDateFormat, got %v", err)
	}
}
