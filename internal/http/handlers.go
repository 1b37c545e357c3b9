package http

import (
	"errors"
	"net/http"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
)

type (
	startCycleRequest struct {
		Amount    int64     `json:"amount" validate:"gt=0"`
		StartDate core.Date `json:"start_date"`
		UserID    *int64    `json:"user_id"`
	}

	incomeRequest struct {
		Amount int64     `json:"amount" validate:"gt=0"`
		Date   core.Date `json:"date"`
	}

	incomeResponse struct {
		Cycle        *core.CycleState `json:"cycle"`
		StartedCycle bool             `json:"started_cycle"`
	}

	extraSpendRequest struct {
		Amount int64  `json:"amount" validate:"gt=0"`
		Note   string `json:"note" validate:"max=200"`
	}

	dailySpendRequest struct {
		Date      core.Date `json:"date"`
		Breakfast int64     `json:"breakfast" validate:"gte=0"`
		Lunch     int64     `json:"lunch" validate:"gte=0"`
		Dinner    int64     `json:"dinner" validate:"gte=0"`
		Other     int64     `json:"other" validate:"gte=0"`
	}

	confirmRequest struct {
		Extra int64  `json:"extra" validate:"gte=0"`
		Note  string `json:"note" validate:"max=200"`
	}

	updateDefaultRequest struct {
		Category string `json:"category" validate:"required"`
		Item     string `json:"item" validate:"required,max=50"`
		Amount   int64  `json:"amount" validate:"gte=0"`
	}
)

// orToday substitutes today's date for an omitted one.
func (s *Server) orToday(d core.Date) core.Date {
	if d.IsZero() {
		return s.cycles.Today()
	}
	return d
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cycles.GetStatusSnapshot(r.Context(), s.cycles.Today(), nil)
	if err != nil {
		s.writeError(w, r, applog.OpStatus, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, snap)
}

func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.cycles.GetCycle(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpStatus, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cycle)
}

func (s *Server) handleStartCycle(w http.ResponseWriter, r *http.Request) {
	var req startCycleRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, applog.OpStartCycle, err)
		return
	}
	start := req.StartDate
	if start.IsZero() {
		start = s.cycles.CycleStartFor(s.cycles.Today())
	}
	cycle, err := s.cycles.StartCycle(r.Context(), req.Amount, start, req.UserID)
	if err != nil {
		s.writeError(w, r, applog.OpStartCycle, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, cycle)
}

// handleIncome records income on the current cycle. When none exists yet it
// opens the anchored cycle covering the income date with the amount as its
// opening balance, so the next rollover check keeps it.
func (s *Server) handleIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, applog.OpRegisterIncome, err)
		return
	}
	date := s.orToday(req.Date)

	cycle, err := s.cycles.RegisterIncome(r.Context(), req.Amount, date)
	if errors.Is(err, core.ErrNoActiveCycle) {
		cycle, err = s.cycles.StartCycle(r.Context(), req.Amount, s.cycles.CycleStartFor(date), nil)
		if err != nil {
			s.writeError(w, r, applog.OpStartCycle, err)
			return
		}
		writeJSON(r.Context(), w, http.StatusCreated, incomeResponse{Cycle: cycle, StartedCycle: true})
		return
	}
	if err != nil {
		s.writeError(w, r, applog.OpRegisterIncome, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, incomeResponse{Cycle: cycle})
}

func (s *Server) handleExtraSpend(w http.ResponseWriter, r *http.Request) {
	var req extraSpendRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, applog.OpExtraSpend, err)
		return
	}
	cycle, err := s.cycles.LogExtraSpend(r.Context(), req.Amount, req.Note, s.cycles.Now())
	if err != nil {
		s.writeError(w, r, applog.OpExtraSpend, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cycle)
}

func (s *Server) handleDailySpend(w http.ResponseWriter, r *http.Request) {
	var req dailySpendRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, applog.OpDailySpend, err)
		return
	}
	entry, err := s.checkin.LogSpend(r.Context(), s.orToday(req.Date), req.Breakfast, req.Lunch, req.Dinner, req.Other)
	if err != nil {
		s.writeError(w, r, applog.OpDailySpend, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, entry)
}

func (s *Server) handleSpendLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.cycles.SpendLogs(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpDailySpend, err)
		return
	}
	if logs == nil {
		logs = []core.DailySpendLog{}
	}
	writeJSON(r.Context(), w, http.StatusOK, logs)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, applog.OpConfirm, err)
		return
	}
	cycle, err := s.checkin.Confirm(r.Context(), req.Extra, req.Note)
	if err != nil {
		s.writeError(w, r, applog.OpConfirm, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cycle)
}

func (s *Server) handleGetDefaults(w http.ResponseWriter, r *http.Request) {
	defaults, err := s.cycles.Defaults(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpUpdateDefault, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, defaults)
}

func (s *Server) handleUpdateDefault(w http.ResponseWriter, r *http.Request) {
	var req updateDefaultRequest
	if err := s.decode(r, w, &req); err != nil {
		s.writeError(w, r, applog.OpUpdateDefault, err)
		return
	}
	defaults, err := s.cycles.UpdateDailyDefault(r.Context(), req.Category, req.Item, req.Amount)
	if err != nil {
		s.writeError(w, r, applog.OpUpdateDefault, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, defaults)
}
