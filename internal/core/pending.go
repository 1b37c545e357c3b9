package core

import "time"

// PendingKind names a scheduled fallback action.
type PendingKind string

const (
	// PendingDefaultAutoClose applies the day's defaults if nobody confirms.
	// At most one exists at a time.
	PendingDefaultAutoClose PendingKind = "default_auto_close"
	// PendingSpendAutoFill writes a default spend log. One per date.
	PendingSpendAutoFill PendingKind = "spend_auto_fill"
)

// PendingAction is a persisted marker for a timer owned by the scheduler.
// Token is what the scheduler needs to cancel it.
type PendingAction struct {
	Kind       PendingKind `json:"kind"`
	TargetDate Date        `json:"target_date"`
	Amount     int64       `json:"amount"`
	Token      string      `json:"token"`
	FireAt     time.Time   `json:"fire_at"`
}

func (a PendingAction) sameSlot(b PendingAction) bool {
	if a.Kind != b.Kind {
		return false
	}
	return a.Kind == PendingDefaultAutoClose || a.TargetDate.Equal(b.TargetDate)
}

// SetPending stores a, replacing whatever occupied its slot.
func (s *AppState) SetPending(a PendingAction) {
	kept := s.Pending[:0]
	for _, p := range s.Pending {
		if !p.sameSlot(a) {
			kept = append(kept, p)
		}
	}
	s.Pending = append(kept, a)
}

func (s *AppState) PendingDefault() (PendingAction, bool) {
	for _, p := range s.Pending {
		if p.Kind == PendingDefaultAutoClose {
			return p, true
		}
	}
	return PendingAction{}, false
}

func (s *AppState) PendingSpend(d Date) (PendingAction, bool) {
	for _, p := range s.Pending {
		if p.Kind == PendingSpendAutoFill && p.TargetDate.Equal(d) {
			return p, true
		}
	}
	return PendingAction{}, false
}

// ClearPendingDefault drops the auto-close marker whatever date it targets.
func (s *AppState) ClearPendingDefault() bool {
	return s.removePending(func(p PendingAction) bool { return p.Kind == PendingDefaultAutoClose })
}

func (s *AppState) ClearPendingSpend(d Date) bool {
	return s.removePending(func(p PendingAction) bool {
		return p.Kind == PendingSpendAutoFill && p.TargetDate.Equal(d)
	})
}

func (s *AppState) removePending(match func(PendingAction) bool) bool {
	kept := s.Pending[:0]
	removed := false
	for _, p := range s.Pending {
		if match(p) {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	s.Pending = kept
	return removed
}
