package core

import "errors"

var (
	ErrNoActiveCycle      = errors.New("no active cycle")
	ErrInvalidCategory    = errors.New("invalid default category")
	ErrInvalidDateFormat  = errors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidTimeFormat  = errors.New("invalid time format, expected HH:MM")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDay         = errors.New("invalid day")
	ErrZeroDate           = errors.New("date cannot be zero")
	ErrFutureDate         = errors.New("date is in the future")
	ErrNoPendingCheckin   = errors.New("no pending check-in")
	ErrInvalidOverrideKey = errors.New("invalid override key")
)
