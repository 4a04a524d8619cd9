package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/karaoke-booking/internal/clock"
	"github.com/iliyamo/karaoke-booking/internal/config"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/service"
	"github.com/iliyamo/karaoke-booking/internal/service/servicetest"
	"github.com/iliyamo/karaoke-booking/internal/utils"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, _ := c.Get(ContextDJID).(uint64)
		if id != 9 {
			t.Errorf("dj id = %v, want 9", c.Get(ContextDJID))
		}
		return c.NoContent(http.StatusNoContent)
	}, JWTAuth(secret), RequireRole(utils.RoleDJ))

	tok, err := utils.NewAccessToken(secret, 9, 10)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	forged, err := utils.NewAccessToken("other", 9, 10)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + tok.Token, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tok.Token, http.StatusUnauthorized},
		{"forged", "Bearer " + forged.Token, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if rec := serve(e, req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireRoleForbidden(t *testing.T) {
	e := echo.New()
	e.GET("/", okHandler, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextRole, "guest")
			return next(c)
		}
	}, RequireRole(utils.RoleDJ))

	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	sid := "6f1c2b7e-3f7a-4d1e-9a55-0c2f3e4d5a6b"
	cfg := config.RateLimitConfig{Prefix: "rl"}

	tests := []struct {
		name     string
		strategy string
		cookie   string
		want     string
	}{
		{"session cookie", "session", sid, "rl:session:" + sid},
		{"no cookie falls back to ip", "session", "", "rl:ip:192.0.2.1"},
		{"garbage cookie falls back to ip", "session", "<script>", "rl:ip:192.0.2.1"},
		{"ip", "ip", sid, "rl:ip:192.0.2.1"},
		{"ip route", "ip_route", "", "rl:ip:192.0.2.1:route:POST /v1/bookings/user"},
		{"ip user route", "ip_user_route", sid, "rl:ip:192.0.2.1:user:session:" + sid + ":route:POST /v1/bookings/user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/v1/bookings/user", nil)
			req.RemoteAddr = "192.0.2.1:5555"
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetPath("/v1/bookings/user")

			cfg.KeyStrategy = tt.strategy
			if got := buildRateKey(cfg, c); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalLimiterThrottles(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/", okHandler, NewTokenBucket(cfg, nil, zerolog.Nop()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		codes = append(codes, serve(e, req).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// Another caller has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.8:1234"
	if rec := serve(e, req); rec.Code != http.StatusOK {
		t.Errorf("second caller status = %d, want 200", rec.Code)
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.GET("/", okHandler, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, zerolog.Nop()))
	for i := 0; i < 5; i++ {
		if rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"songs":[]}`))
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	status, gotHdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || gotHdr.Get("Content-Type") != "application/json" || string(body) != `{"songs":[]}` {
		t.Errorf("decoded (%d, %v, %q, %v)", status, gotHdr, body, ok)
	}
	if _, _, _, ok := decodePayload([]byte{0, 1}); ok {
		t.Error("short payload decoded")
	}
}

func TestCacheKeySeparatesCallers(t *testing.T) {
	e := echo.New()
	mk := func(cookie string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/v1/public/DJ-X/songs?search=vol", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie})
		}
		return e.NewContext(req, httptest.NewRecorder())
	}
	a := "6f1c2b7e-3f7a-4d1e-9a55-0c2f3e4d5a6b"
	b := "0d3f5c1a-2b4e-4c6d-8e9f-1a2b3c4d5e6f"

	shared := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	if cacheKeyFrom(shared, mk(a)) != cacheKeyFrom(shared, mk(b)) {
		t.Error("route_query keys differ between callers")
	}
	perCaller := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query_session"}
	if cacheKeyFrom(perCaller, mk(a)) == cacheKeyFrom(perCaller, mk(b)) {
		t.Error("route_query_session keys collide between callers")
	}
	if !strings.HasPrefix(cacheKeyFrom(shared, mk("")), "cache:") {
		t.Error("key does not carry the prefix")
	}
}

func TestRequireSession(t *testing.T) {
	store := servicetest.NewMemStore()
	clk := clock.Fake(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	mgr := service.NewSessionManager(store, clk, time.Hour, zerolog.Nop())
	venues := service.NewVenueRegistry(store, zerolog.Nop())

	dj := store.AddDJ(model.DJ{StageName: "DJ Nova", QRCodeID: "DJ-NOVA-2026-AB12CD34"})
	store.AddVenue(model.Venue{DJID: dj.ID, Name: "Blue Note", Active: true})
	second := store.AddVenue(model.Venue{DJID: dj.ID, Name: "Red Room"})

	v, err := mgr.Start(context.Background(), dj.QRCodeID, service.RequestMeta{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cookie := v.Session.ID.String()

	e := echo.New()
	handler := func(c echo.Context) error {
		if CurrentSession(c) == nil {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, CurrentSession(c).Session.ID.String())
	}
	e.GET("/strict", handler, RequireSession(mgr, SessionStrict))
	e.GET("/soft", handler, RequireSession(mgr, SessionSoft))
	e.GET("/optional", handler, RequireSession(mgr, SessionOptional))

	get := func(path, cookie string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie})
		}
		return serve(e, req)
	}

	if rec := get("/strict", cookie); rec.Code != http.StatusOK || rec.Body.String() != cookie {
		t.Fatalf("strict = %d %q", rec.Code, rec.Body.String())
	}
	if rec := get("/strict", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("strict without cookie = %d, want 401", rec.Code)
	}
	if rec := get("/optional", ""); rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("optional without cookie = %d %q", rec.Code, rec.Body.String())
	}
	if rec := get("/optional", "not-a-uuid"); rec.Code != http.StatusUnauthorized {
		t.Errorf("optional with bad cookie = %d, want 401", rec.Code)
	}

	if _, err := venues.Toggle(context.Background(), second.ID, dj.ID); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	rec := get("/strict", cookie)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "venue_no_longer_active") {
		t.Errorf("strict after venue switch = %d %s", rec.Code, rec.Body.String())
	}
	if rec := get("/soft", cookie); rec.Code != http.StatusOK {
		t.Errorf("soft after venue switch = %d, want 200", rec.Code)
	}

	clk.Advance(2 * time.Hour)
	rec = get("/soft", cookie)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "session_expired") {
		t.Errorf("soft after expiry = %d %s", rec.Code, rec.Body.String())
	}
}
