package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type (
	// FixedBills are the lump-sum bills set aside every cycle.
	FixedBills struct {
		Rent                 int64 `yaml:"rent" json:"rent" validate:"gte=0"`
		TiffinDailyCost      int64 `yaml:"tiffin_daily_cost" json:"tiffin_daily_cost" validate:"gte=0"`
		TiffinWeekdayCount   int   `yaml:"tiffin_weekday_count" json:"tiffin_weekday_count" validate:"gte=0"`
		TiffinSaturdayCount  int   `yaml:"tiffin_saturday_count" json:"tiffin_saturday_count" validate:"gte=0"`
		ElectricityAmount    int64 `yaml:"electricity_amount" json:"electricity_amount" validate:"gte=0"`
		ElectricityDueMonths []int `yaml:"electricity_due_months" json:"electricity_due_months" validate:"dive,min=1,max=12"`
	}

	IncomeSource struct {
		Day         int    `yaml:"day" json:"day" validate:"min=1,max=31"`
		Amount      int64  `yaml:"amount" json:"amount" validate:"gte=0"`
		Description string `yaml:"description" json:"description" validate:"required"`
	}

	// DailyDefaults holds the baseline per-item spend for each day category.
	DailyDefaults struct {
		Weekday  map[string]int64 `yaml:"weekday" json:"weekday" validate:"required,dive,keys,required,endkeys,gte=0"`
		Saturday map[string]int64 `yaml:"saturday" json:"saturday" validate:"required,dive,keys,required,endkeys,gte=0"`
		Sunday   map[string]int64 `yaml:"sunday" json:"sunday" validate:"required,dive,keys,required,endkeys,gte=0"`
	}

	CycleSettings struct {
		LengthDays                    int    `yaml:"length_days" json:"length_days" validate:"min=1"`
		Timezone                      string `yaml:"timezone" json:"timezone" validate:"required"`
		CheckinTime                   string `yaml:"checkin_time" json:"checkin_time" validate:"required"`
		AutoApplyDefaultsAfterMinutes int    `yaml:"auto_apply_defaults_after_minutes" json:"auto_apply_defaults_after_minutes" validate:"min=5"`
		SpendAutoFillAfterMinutes     int    `yaml:"spend_log_auto_fill_after_minutes" json:"spend_log_auto_fill_after_minutes" validate:"min=1"`
		TiffinReminderTime            string `yaml:"tiffin_reminder_time" json:"tiffin_reminder_time"`
	}

	// AppConfig is the immutable domain configuration loaded once per process.
	AppConfig struct {
		FixedBills    FixedBills     `yaml:"fixed_bills" json:"fixed_bills"`
		IncomeSources []IncomeSource `yaml:"income_sources" json:"income_sources" validate:"dive"`
		DailyDefaults DailyDefaults  `yaml:"daily_defaults" json:"daily_defaults"`
		Cycle         CycleSettings  `yaml:"cycle" json:"cycle"`
	}
)

// DefaultCycleSettings returns the settings used when the config file omits them.
func DefaultCycleSettings() CycleSettings {
	return CycleSettings{
		LengthDays:                    30,
		Timezone:                      "Asia/Kolkata",
		CheckinTime:                   "21:30",
		AutoApplyDefaultsAfterMinutes: 60,
		SpendAutoFillAfterMinutes:     120,
		TiffinReminderTime:            "17:00",
	}
}

// AnchorDay is the latest configured income day, or 1 without income sources.
func (c AppConfig) AnchorDay() int {
	anchor := 0
	for _, src := range c.IncomeSources {
		if src.Day > anchor {
			anchor = src.Day
		}
	}
	if anchor == 0 {
		return 1
	}
	return anchor
}

// ElectricityDueIn reports whether electricity is billed in month.
func (b FixedBills) ElectricityDueIn(month time.Month) bool {
	for _, m := range b.ElectricityDueMonths {
		if m == int(month) {
			return true
		}
	}
	return false
}

// Location loads the configured IANA timezone.
func (s CycleSettings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// ParseClock parses an HH:MM wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	return hour, minute, nil
}
