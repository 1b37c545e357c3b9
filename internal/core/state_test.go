package core

import (
	"testing"
	"time"
)

func TestIncomeEffectiveAmount(t *testing.T) {
	e := IncomeEntry{Date: NewDate(2024, 1, 25), PlannedAmount: 4000}
	if e.EffectiveAmount() != 4000 {
		t.Fatalf("planned amount expected, got %d", e.EffectiveAmount())
	}
	zero := int64(0)
	e.ReceivedAmount = &zero
	if e.EffectiveAmount() != 0 {
		t.Fatalf("received amount of zero must win, got %d", e.EffectiveAmount())
	}
	e.SetAmount(5000)
	if e.PlannedAmount != 5000 || e.EffectiveAmount() != 5000 {
		t.Fatalf("SetAmount() = %+v", e)
	}
}

func TestWalletInvariant(t *testing.T) {
	w := DailyWalletState{Goal: 10000, Balance: 10000, ExpectedDefaultSpend: 9000, BufferAllocation: 1000}
	w.Debit(300)
	w.AdjustIncome(2000)
	w.Debit(50)
	w.AdjustIncome(-500)
	if !w.Balanced() {
		t.Fatalf("balance %d != goal %d - spent %d", w.Balance, w.Goal, w.Spent)
	}
	if w.BufferAllocation != w.Goal-w.ExpectedDefaultSpend {
		t.Fatalf("buffer not recomputed: %+v", w)
	}
}

func TestDailyRecordTotals(t *testing.T) {
	r := DailyRecord{DefaultsApplied: 320, Extras: []ExtraSpendEntry{{Amount: 40}, {Amount: 60}}}
	if r.TotalSpent() != 420 {
		t.Fatalf("TotalSpent() = %d", r.TotalSpent())
	}
	s := SinkingBreakdown{Rent: 1, Tiffin: 2, Electricity: 3, Survival: 4}
	if s.Total() != 10 {
		t.Fatalf("Total() = %d", s.Total())
	}
	l := DailySpendLog{Breakfast: 1, Lunch: 2, Dinner: 3, Other: 4}
	if l.Total() != 10 {
		t.Fatalf("spend log Total() = %d", l.Total())
	}
}

func TestCycleDaysLeft(t *testing.T) {
	c := &CycleState{Start: NewDate(2024, 1, 25), End: NewDate(2024, 2, 23)}
	tests := []struct {
		today Date
		want  int
	}{
		{NewDate(2024, 1, 25), 30},
		{NewDate(2024, 2, 23), 1},
		{NewDate(2024, 2, 24), 0},
		{NewDate(2024, 3, 30), 0},
	}
	for _, tt := range tests {
		if got := c.DaysLeft(tt.today); got != tt.want {
			t.Errorf("DaysLeft(%s) = %d, want %d", tt.today, got, tt.want)
		}
	}
	if !c.Contains(NewDate(2024, 2, 1)) || c.Contains(NewDate(2024, 2, 24)) {
		t.Errorf("Contains() boundaries wrong")
	}
}

func TestPendingSlots(t *testing.T) {
	s := NewAppState()
	day1, day2 := NewDate(2024, 1, 1), NewDate(2024, 1, 2)
	fire := time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)

	s.SetPending(PendingAction{Kind: PendingDefaultAutoClose, TargetDate: day1, Token: "a", FireAt: fire})
	s.SetPending(PendingAction{Kind: PendingSpendAutoFill, TargetDate: day1, Token: "b"})
	s.SetPending(PendingAction{Kind: PendingSpendAutoFill, TargetDate: day2, Token: "c"})
	s.SetPending(PendingAction{Kind: PendingDefaultAutoClose, TargetDate: day2, Token: "d"})

	if len(s.Pending) != 3 {
		t.Fatalf("expected 3 pending actions, got %d: %+v", len(s.Pending), s.Pending)
	}
	p, ok := s.PendingDefault()
	if !ok || p.Token != "d" {
		t.Fatalf("default slot must be overwritten, got %+v", p)
	}
	if p, ok := s.PendingSpend(day1); !ok || p.Token != "b" {
		t.Fatalf("spend slot for day1 lost: %+v", p)
	}

	if !s.ClearPendingDefault() {
		t.Fatalf("ClearPendingDefault() reported nothing removed")
	}
	if _, ok := s.PendingSpend(day2); !ok {
		t.Fatalf("clearing the default must not clear spend auto-fill")
	}
	if !s.ClearPendingSpend(day1) || s.ClearPendingSpend(day1) {
		t.Fatalf("ClearPendingSpend() must remove exactly once")
	}
	if len(s.Pending) != 1 {
		t.Fatalf("expected 1 pending action left, got %+v", s.Pending)
	}
}
