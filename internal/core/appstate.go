package core

import "sort"

// AppState is the single persisted document for the deployment.
type AppState struct {
	// Revision is bumped by every successful save.
	Revision  int64                    `json:"revision"`
	UserID    *int64                   `json:"user_id,omitempty"`
	Cycle     *CycleState              `json:"cycle,omitempty"`
	Overrides map[string]int64         `json:"overrides"`
	SpendLogs map[string]DailySpendLog `json:"spend_logs"`
	Pending   []PendingAction          `json:"pending"`
}

func NewAppState() *AppState {
	s := &AppState{}
	s.Normalize()
	return s
}

// Normalize replaces nil collections so a decoded document is safe to mutate.
func (s *AppState) Normalize() {
	if s.Overrides == nil {
		s.Overrides = make(map[string]int64)
	}
	if s.SpendLogs == nil {
		s.SpendLogs = make(map[string]DailySpendLog)
	}
	if s.Pending == nil {
		s.Pending = []PendingAction{}
	}
	if s.Cycle != nil {
		if s.Cycle.Records == nil {
			s.Cycle.Records = make(map[string]DailyRecord)
		}
		if s.Cycle.DefaultTotalsByDate == nil {
			s.Cycle.DefaultTotalsByDate = make(map[string]int64)
		}
	}
}

// SortedSpendLogs returns the local spend logs ordered by date.
func (s *AppState) SortedSpendLogs() []DailySpendLog {
	out := make([]DailySpendLog, 0, len(s.SpendLogs))
	for _, l := range s.SpendLogs {
		out = append(out, l)
	}
	SortSpendLogs(out)
	return out
}

func SortSpendLogs(logs []DailySpendLog) {
	sort.Slice(logs, func(i, j int) bool { return logs[i].Date.Before(logs[j].Date) })
}
