// Package finance derives a cycle's budget from configuration and calendar
// dates. Everything here is pure: no clocks, no storage.
package finance

import (
	"fmt"
	"strings"

	"cashflow/internal/core"
)

const openingBalanceDescription = "Cycle opening balance"

// CycleComputation is everything a new cycle needs before it is persisted.
type CycleComputation struct {
	Start                core.Date
	End                  core.Date
	DueDate              core.Date
	Incomes              []core.IncomeEntry
	Sinking              core.SinkingBreakdown
	Survival             core.SurvivalAllocation
	ExpectedDefaultSpend int64
	DefaultTotalsByDate  map[string]int64
	DailyGoal            int64
	BufferAllocation     int64
}

type options struct {
	openingBalance *int64
}

// Option customizes BuildCycleComputation.
type Option func(*options)

// WithOpeningBalance overrides the income resolved on the start date, or
// adds a manual opening-balance entry when none falls there.
func WithOpeningBalance(amount int64) Option {
	return func(o *options) {
		o.openingBalance = &amount
	}
}

// BuildCycleComputation computes the cycle starting at start. defaults is
// the resolved default-spend table (base config plus overrides).
func BuildCycleComputation(start core.Date, cfg core.AppConfig, defaults core.DailyDefaults, opts ...Option) CycleComputation {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	length := cfg.Cycle.LengthDays
	if length < 1 {
		length = 1
	}
	end := start.AddDays(length - 1)
	due := core.FirstDayOfNextMonth(start)

	incomes := resolveIncomeSchedule(start, end, cfg.IncomeSources)
	if o.openingBalance != nil {
		incomes = applyOpeningBalance(incomes, start, *o.openingBalance)
	}

	survival := survivalAllocation(due, incomes, defaults)
	sinking := core.SinkingBreakdown{
		Rent:        cfg.FixedBills.Rent,
		Tiffin:      tiffinAllocation(cfg.FixedBills),
		Electricity: electricityAllocation(due, cfg.FixedBills),
		Survival:    survival.Total,
	}

	expected, totals := expectedDefaultTotals(start, length, defaults)

	var income int64
	for _, e := range incomes {
		income += e.EffectiveAmount()
	}
	goal := income - sinking.Total()

	return CycleComputation{
		Start:                start,
		End:                  end,
		DueDate:              due,
		Incomes:              incomes,
		Sinking:              sinking,
		Survival:             survival,
		ExpectedDefaultSpend: expected,
		DefaultTotalsByDate:  totals,
		DailyGoal:            goal,
		BufferAllocation:     goal - expected,
	}
}

// State turns the computation into a fresh cycle with an untouched wallet.
func (c CycleComputation) State(timezone string) *core.CycleState {
	incomes := make([]core.IncomeEntry, len(c.Incomes))
	copy(incomes, c.Incomes)
	totals := make(map[string]int64, len(c.DefaultTotalsByDate))
	for k, v := range c.DefaultTotalsByDate {
		totals[k] = v
	}
	return &core.CycleState{
		Start:            c.Start,
		End:              c.End,
		DueDate:          c.DueDate,
		SinkingBreakdown: c.Sinking,
		DailyWallet: core.DailyWalletState{
			Goal:                 c.DailyGoal,
			Balance:              c.DailyGoal,
			ExpectedDefaultSpend: c.ExpectedDefaultSpend,
			BufferAllocation:     c.BufferAllocation,
		},
		Incomes:             incomes,
		SurvivalAllocation:  c.Survival,
		Records:             make(map[string]core.DailyRecord),
		DefaultTotalsByDate: totals,
		Timezone:            timezone,
	}
}

// ExtendCycle stretches c so it covers through, projecting default spend for
// the added days and refreshing the buffer. It returns the number of days
// added; a through on or before c.End leaves the cycle untouched.
func ExtendCycle(c *core.CycleState, through core.Date, defaults core.DailyDefaults) int {
	added := c.End.DaysUntil(through)
	if added <= 0 {
		return 0
	}
	expected, totals := expectedDefaultTotals(c.End.AddDays(1), added, defaults)
	if c.DefaultTotalsByDate == nil {
		c.DefaultTotalsByDate = make(map[string]int64, len(totals))
	}
	for k, v := range totals {
		c.DefaultTotalsByDate[k] = v
	}
	c.End = through
	c.DailyWallet.ExpectedDefaultSpend += expected
	c.DailyWallet.BufferAllocation = c.DailyWallet.Goal - c.DailyWallet.ExpectedDefaultSpend
	return added
}

func resolveIncomeSchedule(start, end core.Date, sources []core.IncomeSource) []core.IncomeEntry {
	entries := make([]core.IncomeEntry, 0, len(sources))
	for _, src := range sources {
		d := core.ResolveIncomeDate(start, src.Day)
		if d.Before(start) || d.After(end) {
			continue
		}
		entries = append(entries, core.IncomeEntry{
			Date:          d,
			Description:   src.Description,
			PlannedAmount: src.Amount,
		})
	}
	sortIncomes(entries)
	return entries
}

func applyOpeningBalance(incomes []core.IncomeEntry, start core.Date, amount int64) []core.IncomeEntry {
	matched := false
	for i := range incomes {
		if incomes[i].Date.Equal(start) {
			incomes[i].SetAmount(amount)
			matched = true
		}
	}
	if matched {
		return incomes
	}
	opening := core.IncomeEntry{Date: start, Description: openingBalanceDescription}
	opening.SetAmount(amount)
	incomes = append(incomes, opening)
	sortIncomes(incomes)
	return incomes
}

func sortIncomes(entries []core.IncomeEntry) {
	c := core.CycleState{Incomes: entries}
	c.SortIncomes()
}

func tiffinAllocation(b core.FixedBills) int64 {
	return b.TiffinDailyCost * int64(b.TiffinWeekdayCount+b.TiffinSaturdayCount)
}

func electricityAllocation(due core.Date, b core.FixedBills) int64 {
	if b.ElectricityDueIn(due.Month()) {
		return b.ElectricityAmount
	}
	return 0
}

// survivalAllocation covers the defaults from the due date up to, but not
// including, the first income after it.
func survivalAllocation(due core.Date, incomes []core.IncomeEntry, defaults core.DailyDefaults) core.SurvivalAllocation {
	var next *core.IncomeEntry
	for i := range incomes {
		if incomes[i].Date.After(due) {
			next = &incomes[i]
			break
		}
	}
	if next == nil {
		return core.SurvivalAllocation{Dates: []core.SurvivalDay{}}
	}

	out := core.SurvivalAllocation{Dates: []core.SurvivalDay{}}
	for d := due; d.Before(next.Date); d = d.AddDays(1) {
		total, breakdown := defaults.CostForDate(d)
		out.Total += total
		out.Dates = append(out.Dates, core.SurvivalDay{
			Date:         d,
			DefaultSpend: total,
			Breakdown:    formatBreakdown(breakdown),
		})
	}
	return out
}

func expectedDefaultTotals(start core.Date, days int, defaults core.DailyDefaults) (int64, map[string]int64) {
	totals := make(map[string]int64, days)
	var running int64
	for i := 0; i < days; i++ {
		d := start.AddDays(i)
		total, _ := defaults.CostForDate(d)
		totals[d.String()] = total
		running += total
	}
	return running, totals
}

// formatBreakdown renders "breakfast: ₹50, lunch: ₹120".
func formatBreakdown(breakdown map[string]int64) string {
	parts := make([]string, 0, len(breakdown))
	for _, item := range core.ItemNames(breakdown) {
		parts = append(parts, fmt.Sprintf("%s: %s", item, core.FormatAmount(breakdown[item])))
	}
	return strings.Join(parts, ", ")
}
