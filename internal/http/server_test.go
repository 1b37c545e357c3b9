package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/scheduler"
	"cashflow/internal/services"
	"cashflow/internal/storage"
)

// jan26Evening is a Friday inside the cycle that starts on 2024-01-25.
var jan26Evening = time.Date(2024, 1, 26, 21, 30, 0, 0, time.UTC)

func testConfig() core.AppConfig {
	cycle := core.DefaultCycleSettings()
	cycle.Timezone = "UTC"
	return core.AppConfig{
		FixedBills: core.FixedBills{
			Rent:                 10000,
			TiffinDailyCost:      80,
			TiffinWeekdayCount:   22,
			TiffinSaturdayCount:  4,
			ElectricityAmount:    1500,
			ElectricityDueMonths: []int{2, 4, 6, 8, 10, 12},
		},
		IncomeSources: []core.IncomeSource{
			{Day: 25, Amount: 40000, Description: "Salary"},
			{Day: 5, Amount: 5000, Description: "Freelance"},
		},
		DailyDefaults: core.DailyDefaults{
			Weekday:  map[string]int64{"breakfast": 50, "lunch": 100, "dinner": 150},
			Saturday: map[string]int64{"breakfast": 50, "dinner": 200},
			Sunday:   map[string]int64{"brunch": 400},
		},
		Cycle: cycle,
	}
}

type apiFixture struct {
	srv    *Server
	cycles *services.CycleManager
}

func newAPIFixture(t *testing.T, opts ...ServerOption) *apiFixture {
	t.Helper()
	cycles, err := services.NewCycleManager(storage.NewMemoryStore(), testConfig(),
		services.WithClock(func() time.Time { return jan26Evening }))
	if err != nil {
		t.Fatalf("NewCycleManager() error = %v", err)
	}
	checkin, err := services.NewCheckinService(cycles, scheduler.New(time.UTC), nil)
	if err != nil {
		t.Fatalf("NewCheckinService() error = %v", err)
	}
	quiet := applog.New(applog.Config{Output: io.Discard, Component: applog.ComponentHTTP})
	srv := NewServer(":0", cycles, checkin, append([]ServerOption{WithLogger(quiet)}, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &apiFixture{srv: srv, cycles: cycles}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func (f *apiFixture) startCycle(t *testing.T) {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/cycle", `{"amount": 50000, "start_date": "2024-01-25"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /cycle status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody[map[string]string](t, rr); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestStartAndGetCycle(t *testing.T) {
	f := newAPIFixture(t)

	if rr := f.do(t, http.MethodGet, "/cycle", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("GET /cycle before start = %d, want 404", rr.Code)
	}

	f.startCycle(t)

	rr := f.do(t, http.MethodGet, "/cycle", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /cycle = %d", rr.Code)
	}
	c := decodeBody[core.CycleState](t, rr)
	if c.Start.String() != "2024-01-25" || c.End.String() != "2024-02-23" {
		t.Errorf("cycle = %s..%s", c.Start, c.End)
	}
	if c.DailyWallet.Goal != 40170 || c.DailyWallet.Balance != 40170 {
		t.Errorf("wallet = %+v", c.DailyWallet)
	}
}

func TestStartCycle_DefaultsToAnchoredCycle(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(t, http.MethodPost, "/cycle", `{"amount": 50000, "user_id": 42}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if c := decodeBody[core.CycleState](t, rr); c.Start.String() != "2024-01-25" {
		t.Errorf("start = %s, want the anchor date 2024-01-25", c.Start)
	}
	id, err := f.cycles.UserID(context.Background())
	if err != nil || id == nil || *id != 42 {
		t.Errorf("UserID() = %v, %v", id, err)
	}

	rr = f.do(t, http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, body %s", rr.Code, rr.Body.String())
	}
	snap := decodeBody[services.StatusSnapshot](t, rr)
	if snap.Cycle == nil || snap.Cycle.Start.String() != "2024-01-25" {
		t.Fatalf("status cycle = %+v", snap.Cycle)
	}
	if snap.Cycle.DailyWallet.Goal != 40170 {
		t.Errorf("goal = %d, want 40170 from the 50000 opening balance", snap.Cycle.DailyWallet.Goal)
	}
}

func TestIncome(t *testing.T) {
	t.Run("starts a cycle when none exists", func(t *testing.T) {
		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/income", `{"amount": 50000, "date": "2024-01-25"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		got := decodeBody[incomeResponse](t, rr)
		if !got.StartedCycle || got.Cycle.DailyWallet.Goal != 40170 {
			t.Errorf("response = %+v", got)
		}
	})

	t.Run("opens the anchored cycle for a mid-cycle date", func(t *testing.T) {
		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/income", `{"amount": 50000, "date": "2024-01-26"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		got := decodeBody[incomeResponse](t, rr)
		if !got.StartedCycle || got.Cycle.Start.String() != "2024-01-25" {
			t.Fatalf("response = %+v", got)
		}

		snap := decodeBody[services.StatusSnapshot](t, f.do(t, http.MethodGet, "/status", ""))
		if snap.Cycle == nil || snap.Cycle.DailyWallet.Goal != 40170 {
			t.Errorf("status should keep the started cycle, got %+v", snap.Cycle)
		}
	})

	t.Run("adds to the running cycle", func(t *testing.T) {
		f := newAPIFixture(t)
		f.startCycle(t)
		rr := f.do(t, http.MethodPost, "/income", `{"amount": 2000, "date": "2024-01-30"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		got := decodeBody[incomeResponse](t, rr)
		if got.StartedCycle || got.Cycle.DailyWallet.Goal != 42170 {
			t.Errorf("response = %+v", got)
		}
	})
}

func TestExtraSpend(t *testing.T) {
	f := newAPIFixture(t)

	if rr := f.do(t, http.MethodPost, "/spend/extra", `{"amount": 120}`); rr.Code != http.StatusNotFound {
		t.Fatalf("extra spend without cycle = %d, want 404", rr.Code)
	}

	f.startCycle(t)
	rr := f.do(t, http.MethodPost, "/spend/extra", `{"amount": 120, "note": "coffee"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	c := decodeBody[core.CycleState](t, rr)
	if c.DailyWallet.Spent != 120 || c.DailyWallet.Balance != 40050 {
		t.Errorf("wallet = %+v", c.DailyWallet)
	}
	if extras := c.Records["2024-01-26"].Extras; len(extras) != 1 || extras[0].Note != "coffee" {
		t.Errorf("extras = %+v", extras)
	}
}

func TestConfirmCheckin(t *testing.T) {
	f := newAPIFixture(t)
	f.startCycle(t)
	ctx := context.Background()

	if rr := f.do(t, http.MethodPost, "/checkin/confirm", `{}`); rr.Code != http.StatusNotFound {
		t.Fatalf("confirm without pending check-in = %d, want 404", rr.Code)
	}

	if err := f.cycles.MarkPendingDefault(ctx, core.NewDate(2024, 1, 26), "tok", jan26Evening.Add(time.Hour)); err != nil {
		t.Fatalf("MarkPendingDefault() error = %v", err)
	}
	rr := f.do(t, http.MethodPost, "/checkin/confirm", `{"extra": 30, "note": "snacks"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	c := decodeBody[core.CycleState](t, rr)
	if c.DailyWallet.Spent != 330 {
		t.Errorf("spent = %d, want 300 defaults + 30 extra", c.DailyWallet.Spent)
	}
	if rec := c.Records["2024-01-26"]; rec.DefaultsApplied != 300 || rec.AutoClosed {
		t.Errorf("record = %+v", rec)
	}

	if rr := f.do(t, http.MethodPost, "/checkin/confirm", `{}`); rr.Code != http.StatusNotFound {
		t.Errorf("second confirm = %d, want 404", rr.Code)
	}
}

func TestDailySpend(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"today by default", `{"breakfast": 50, "lunch": 100, "dinner": 150, "other": 20}`, http.StatusOK},
		{"past date", `{"date": "2024-01-20", "lunch": 90}`, http.StatusOK},
		{"future date", `{"date": "2024-01-27", "lunch": 90}`, http.StatusUnprocessableEntity},
		{"bad date", `{"date": "27/01/2024", "lunch": 90}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"lunch": -1}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			rr := f.do(t, http.MethodPost, "/spend/daily", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/spend/daily", `{"breakfast": 50, "lunch": 100, "dinner": 150, "other": 20}`)
	rr := f.do(t, http.MethodGet, "/spend/logs", "")
	logs := decodeBody[[]core.DailySpendLog](t, rr)
	if len(logs) != 1 || logs[0].Date.String() != "2024-01-26" || logs[0].Total() != 320 || logs[0].AutoFilled {
		t.Errorf("logs = %+v", logs)
	}
}

func TestUpdateDefault(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"category": "weekday", "item": " Lunch ", "amount": 120}`, http.StatusOK},
		{"unknown category", `{"category": "holiday", "item": "lunch", "amount": 120}`, http.StatusUnprocessableEntity},
		{"missing item", `{"category": "weekday", "amount": 120}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"category": "weekday", "item": "lunch", "amount": -5}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			rr := f.do(t, http.MethodPut, "/defaults", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			got := decodeBody[core.DailyDefaults](t, f.do(t, http.MethodGet, "/defaults", ""))
			if got.Weekday["lunch"] != 120 || got.Weekday["dinner"] != 150 {
				t.Errorf("weekday = %v", got.Weekday)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(t, http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	snap := decodeBody[services.StatusSnapshot](t, rr)
	if snap.Today.String() != "2024-01-26" {
		t.Errorf("today = %s", snap.Today)
	}
	if snap.Cycle == nil || snap.Cycle.Start.String() != "2024-01-25" {
		t.Fatalf("status should roll a cycle for today, got %+v", snap.Cycle)
	}
	if snap.TodayDefault.Category != core.CategoryWeekday || snap.TodayDefault.Total != 300 {
		t.Errorf("today default = %+v", snap.TodayDefault)
	}
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"malformed json", http.MethodPost, "/cycle", `{"amount":`, http.StatusBadRequest, ""},
		{"unknown field", http.MethodPost, "/cycle", `{"amount": 5, "bonus": 1}`, http.StatusBadRequest, ""},
		{"trailing data", http.MethodPost, "/cycle", `{"amount": 5} {}`, http.StatusBadRequest, ""},
		{"zero amount", http.MethodPost, "/cycle", `{"amount": 0}`, http.StatusUnprocessableEntity, "amount: gt"},
		{"empty body", http.MethodPost, "/spend/extra", ``, http.StatusUnprocessableEntity, "amount: gt"},
		{"bad start date", http.MethodPost, "/cycle", `{"amount": 5, "start_date": "2024-02-30"}`, http.StatusUnprocessableEntity, ""},
		{"wrong method", http.MethodDelete, "/cycle", ``, http.StatusMethodNotAllowed, ""},
		{"unknown route", http.MethodGet, "/nope", ``, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			rr := f.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantField == "" {
				return
			}
			resp := decodeBody[errorResponse](t, rr)
			found := false
			for _, f := range resp.Fields {
				found = found || f == tt.wantField
			}
			if !found {
				t.Errorf("fields = %v, want %q", resp.Fields, tt.wantField)
			}
		})
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/healthz", "")
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Content-Type":           "application/json; charset=utf-8",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("missing generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want the caller's", got)
	}
}

func TestRateLimit(t *testing.T) {
	f := newAPIFixture(t, WithRateLimit(2))

	for i := 0; i < 2; i++ {
		if rr := f.do(t, http.MethodPost, "/spend/extra", `{"amount": 10}`); rr.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i+1)
		}
	}
	rr := f.do(t, http.MethodPost, "/spend/extra", `{"amount": 10}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}

	// Reads are never throttled.
	if rr := f.do(t, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("GET after limit = %d", rr.Code)
	}
}
