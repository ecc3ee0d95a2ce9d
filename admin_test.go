package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/metrics"
)

func adminServer(t *testing.T) *server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	auth, err := newAdminAuth(config.Admin{
		Username:     "admin",
		PasswordHash: string(hash),
		HashKey:      strings.Repeat("k", 32),
		BlockKey:     strings.Repeat("b", 16),
	}, false)
	if err != nil {
		t.Fatalf("admin auth: %v", err)
	}
	store, err := metrics.Open(":memory:", metrics.WithSalt("pepper"))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := testServer(t, errFetcher{}, &mockSender{rcpt: contact.Receipt{Status: 200, Text: "OK"}})
	s.admin = auth
	s.metrics = store
	return s
}

func TestAdminRequiresSession(t *testing.T) {
	s := adminServer(t)
	rec := do(t, s.routes(), http.MethodGet, "/admin/api/stats", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	s := adminServer(t)
	rec := do(t, s.routes(), http.MethodPost, "/admin/login", "application/json", `{"username":"admin","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("no session cookie expected on failure")
	}
}

func TestAdminLoginAndSummary(t *testing.T) {
	s := adminServer(t)
	r := s.routes()

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"name":"Jane","email":"jane@x.com","message":"Hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DNT", "1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	rec := do(t, r, http.MethodPost, "/admin/login", "application/json", `{"username":"admin","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != adminCookie || !cookies[0].HttpOnly {
		t.Fatalf("expected an http-only session cookie, got %+v", cookies)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected summary, got %d %s", rec.Code, rec.Body.String())
	}
	deliveries, _ := decode(t, rec)["deliveries"].(map[string]any)
	if deliveries["delivered"] != float64(1) {
		t.Fatalf("expected one recorded delivery, got %v", deliveries)
	}
}

func TestAdminRejectsForgedCookie(t *testing.T) {
	s := adminServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
	req.AddCookie(&http.Cookie{Name: adminCookie, Value: "admin", Expires: time.Now().Add(time.Hour)})
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged cookie, got %d", rec.Code)
	}
}

func TestNewAdminAuthValidation(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	cases := []config.Admin{
		{Username: "admin", PasswordHash: "plaintext", HashKey: strings.Repeat("k", 32)},
		{Username: "admin", PasswordHash: string(hash), HashKey: "short"},
		{Username: "admin", PasswordHash: string(hash), HashKey: strings.Repeat("k", 32), BlockKey: "odd"},
	}
	for i, c := range cases {
		if _, err := newAdminAuth(c, false); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestVisitsDrainedBeforeClose(t *testing.T) {
	s := adminServer(t)
	s.visits = make(chan visit, 8)
	s.start(context.Background())
	r := s.routes()

	rec := do(t, r, http.MethodGet, "/api/profile", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("DNT", "1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	do(t, r, http.MethodGet, "/healthz", "", "")

	s.stopWorkers()
	s.stopWorkers()

	sum, err := s.metrics.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalVisitors != 1 {
		t.Fatalf("expected one recorded visit after drain, got %d", sum.TotalVisitors)
	}
}

func TestVisitQueueFullDropsInsteadOfBlocking(t *testing.T) {
	s := adminServer(t)
	s.visits = make(chan visit, 1)
	r := s.routes()

	for i := 0; i < 3; i++ {
		if rec := do(t, r, http.MethodGet, "/api/profile", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if len(s.visits) != 1 {
		t.Fatalf("expected the queue to hold one visit, got %d", len(s.visits))
	}
}
