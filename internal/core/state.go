package core

import (
	"sort"
	"time"
)

type (
	IncomeEntry struct {
		Date           Date   `json:"date"`
		Description    string `json:"description"`
		PlannedAmount  int64  `json:"planned_amount"`
		ReceivedAmount *int64 `json:"received_amount,omitempty"`
	}

	ExtraSpendEntry struct {
		Amount    int64     `json:"amount"`
		Note      string    `json:"note,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}

	// DailyRecord tracks what has been debited from the wallet for one date.
	DailyRecord struct {
		Date            Date              `json:"date"`
		DefaultsApplied int64             `json:"defaults_applied"`
		Extras          []ExtraSpendEntry `json:"extras"`
		AutoClosed      bool              `json:"auto_closed"`
		Note            string            `json:"note,omitempty"`
	}

	SurvivalDay struct {
		Date         Date   `json:"date"`
		DefaultSpend int64  `json:"default_spend"`
		Breakdown    string `json:"breakdown"`
	}

	SurvivalAllocation struct {
		Total int64         `json:"total"`
		Dates []SurvivalDay `json:"dates"`
	}

	SinkingBreakdown struct {
		Rent        int64 `json:"rent"`
		Tiffin      int64 `json:"tiffin"`
		Electricity int64 `json:"electricity"`
		Survival    int64 `json:"survival"`
	}

	// DailyWalletState is the discretionary allowance ledger. Balance always
	// equals Goal - Spent.
	DailyWalletState struct {
		Goal                 int64 `json:"goal"`
		Balance              int64 `json:"balance"`
		Spent                int64 `json:"spent"`
		ExpectedDefaultSpend int64 `json:"expected_default_spend"`
		BufferAllocation     int64 `json:"buffer_allocation"`
	}

	CycleState struct {
		Start               Date                   `json:"start"`
		End                 Date                   `json:"end"`
		DueDate             Date                   `json:"due_date"`
		SinkingBreakdown    SinkingBreakdown       `json:"sinking_breakdown"`
		DailyWallet         DailyWalletState       `json:"daily_wallet"`
		Incomes             []IncomeEntry          `json:"incomes"`
		SurvivalAllocation  SurvivalAllocation     `json:"survival_allocation"`
		Records             map[string]DailyRecord `json:"records"`
		DefaultTotalsByDate map[string]int64       `json:"default_totals_by_date"`
		Timezone            string                 `json:"timezone"`
	}

	// DailySpendLog is the actual per-meal spend for a date, kept apart from
	// the wallet ledger for reporting and mirroring.
	DailySpendLog struct {
		Date       Date      `json:"date"`
		Breakfast  int64     `json:"breakfast"`
		Lunch      int64     `json:"lunch"`
		Dinner     int64     `json:"dinner"`
		Other      int64     `json:"other"`
		AutoFilled bool      `json:"auto_filled"`
		RecordedAt time.Time `json:"recorded_at"`
	}
)

func (e IncomeEntry) EffectiveAmount() int64 {
	if e.ReceivedAmount != nil {
		return *e.ReceivedAmount
	}
	return e.PlannedAmount
}

// SetAmount overwrites both planned and received amounts.
func (e *IncomeEntry) SetAmount(amount int64) {
	e.PlannedAmount = amount
	e.ReceivedAmount = &amount
}

func (r DailyRecord) TotalSpent() int64 {
	total := r.DefaultsApplied
	for _, x := range r.Extras {
		total += x.Amount
	}
	return total
}

func (s SinkingBreakdown) Total() int64 {
	return s.Rent + s.Tiffin + s.Electricity + s.Survival
}

// Debit records spend against the wallet.
func (w *DailyWalletState) Debit(amount int64) {
	w.Balance -= amount
	w.Spent += amount
}

// AdjustIncome moves goal and balance together by delta and refreshes the buffer.
func (w *DailyWalletState) AdjustIncome(delta int64) {
	w.Goal += delta
	w.Balance += delta
	w.BufferAllocation = w.Goal - w.ExpectedDefaultSpend
}

func (w DailyWalletState) Balanced() bool {
	return w.Balance == w.Goal-w.Spent
}

// DefaultTotalFor returns the precomputed default spend for d, or 0 outside the cycle.
func (c *CycleState) DefaultTotalFor(d Date) int64 {
	return c.DefaultTotalsByDate[d.String()]
}

func (c *CycleState) Contains(d Date) bool {
	return !d.Before(c.Start) && !d.After(c.End)
}

// DaysLeft counts today and every remaining day of the cycle.
func (c *CycleState) DaysLeft(today Date) int {
	days := today.DaysUntil(c.End) + 1
	if days < 0 {
		return 0
	}
	return days
}

// Record returns the record for d, creating an empty one if needed.
func (c *CycleState) Record(d Date) DailyRecord {
	if c.Records == nil {
		c.Records = make(map[string]DailyRecord)
	}
	if r, ok := c.Records[d.String()]; ok {
		return r
	}
	return DailyRecord{Date: d}
}

func (c *CycleState) PutRecord(r DailyRecord) {
	if c.Records == nil {
		c.Records = make(map[string]DailyRecord)
	}
	c.Records[r.Date.String()] = r
}

// SortIncomes keeps the income list ordered by date.
func (c *CycleState) SortIncomes() {
	sort.SliceStable(c.Incomes, func(i, j int) bool {
		return c.Incomes[i].Date.Before(c.Incomes[j].Date)
	})
}

func (l DailySpendLog) Total() int64 {
	return l.Breakfast + l.Lunch + l.Dinner + l.Other
}
