package finance

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cashflow/internal/core"
)

// itemLabels renames items whose title-cased key reads badly.
var itemLabels = map[string]string{"study": "Library"}

// ItemTotal aggregates one default-spend item across a window.
type ItemTotal struct {
	Total int64 `json:"total"`
	Count int   `json:"count"`
}

// RequiredFunds is how much must be held from Start through End inclusive.
type RequiredFunds struct {
	Start               core.Date            `json:"start"`
	End                 core.Date            `json:"end"`
	Total               int64                `json:"total"`
	Rent                int64                `json:"rent"`
	Tiffin              int64                `json:"tiffin"`
	TiffinWeekdayMeals  int                  `json:"tiffin_weekday_meals"`
	TiffinSaturdayMeals int                  `json:"tiffin_saturday_meals"`
	Electricity         int64                `json:"electricity"`
	ElectricityDue      core.Date            `json:"electricity_due"`
	DailySpendTotal     int64                `json:"daily_spend_total"`
	DayCount            int                  `json:"day_count"`
	DailyBreakdown      map[string]ItemTotal `json:"daily_breakdown"`
}

// ComputeRequiredWindows answers "how much should I be holding" for two
// horizons: through the next bill due date and through the upcoming 10th.
// It does not need an active cycle.
func ComputeRequiredWindows(today core.Date, cfg core.AppConfig, defaults core.DailyDefaults) (throughDue, throughTenth RequiredFunds) {
	due := core.FirstDayOfNextMonth(today)
	tenth := core.UpcomingTenth(today)

	bills := cfg.FixedBills
	rent := bills.Rent
	tiffin := tiffinAllocation(bills)
	electricity := electricityAllocation(due, bills)

	throughDue = requiredFunds(today, due, due, rent, tiffin, electricity, bills, defaults)
	throughTenth = requiredFunds(today, tenth, due, rent, tiffin, electricity, bills, defaults)
	return throughDue, throughTenth
}

// requiredFunds includes each bill only when its due date is inside the window.
func requiredFunds(start, end, billsDue core.Date, rent, tiffin, electricity int64, bills core.FixedBills, defaults core.DailyDefaults) RequiredFunds {
	out := RequiredFunds{
		Start:               start,
		End:                 end,
		TiffinWeekdayMeals:  bills.TiffinWeekdayCount,
		TiffinSaturdayMeals: bills.TiffinSaturdayCount,
		ElectricityDue:      billsDue,
	}
	if !billsDue.After(end) {
		out.Rent = rent
		out.Tiffin = tiffin
		out.Electricity = electricity
	}

	out.DailySpendTotal, out.DailyBreakdown = dailySpendBetween(start, end, defaults)
	if days := start.DaysUntil(end) + 1; days > 0 {
		out.DayCount = days
	}
	out.Total = out.Rent + out.Tiffin + out.Electricity + out.DailySpendTotal
	return out
}

// dailySpendBetween sums defaults from start through end inclusive and
// buckets them per item label. An empty window yields zero.
func dailySpendBetween(start, end core.Date, defaults core.DailyDefaults) (int64, map[string]ItemTotal) {
	perItem := make(map[string]ItemTotal)
	if end.Before(start) {
		return 0, perItem
	}
	var total int64
	for d := start; !d.After(end); d = d.AddDays(1) {
		dayTotal, breakdown := defaults.CostForDate(d)
		total += dayTotal
		for item, amount := range breakdown {
			label := ItemLabel(item)
			bucket := perItem[label]
			bucket.Total += amount
			bucket.Count++
			perItem[label] = bucket
		}
	}
	return total, perItem
}

// ItemLabel turns a config key like "dinner_out" into "Dinner Out".
func ItemLabel(item string) string {
	if label, ok := itemLabels[item]; ok {
		return label
	}
	return cases.Title(language.English).String(strings.ReplaceAll(item, "_", " "))
}
