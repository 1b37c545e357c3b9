package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		proxied bool
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "forwarded ignored without proxy", remote: "10.0.0.1:5555", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, want: "10.0.0.1"},
		{name: "forwarded first hop", proxied: true, remote: "10.0.0.1:5555", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.2"}, want: "1.2.3.4"},
		{name: "real ip", proxied: true, remote: "10.0.0.1:5555", headers: map[string]string{"X-Real-IP": " 5.6.7.8 "}, want: "5.6.7.8"},
		{name: "remote without port", remote: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{trustedProxies: tt.proxied}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := s.clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientLimiter(t *testing.T) {
	l := newClientLimiter(3)

	for i := 0; i < 3; i++ {
		if !l.allow("a") {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if l.allow("a") {
		t.Error("fourth request allowed, want burst of 3")
	}
	if !l.allow("b") {
		t.Error("other clients keep their own bucket")
	}

	now := time.Now()
	l.limiters.WithClock(func() time.Time { return now.Add(limiterIdleTTL) })
	if removed := l.cleanExpired(); removed != 2 {
		t.Errorf("cleanExpired() = %d, want 2", removed)
	}
	if !l.allow("a") {
		t.Error("forgotten client should start with a full bucket")
	}
}
