package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	applogger "FinCast/pkg/logger"
)

type denyAfter struct {
	n    int
	keys []string
}

func (d *denyAfter) Allow(key string) bool {
	d.keys = append(d.keys, key)
	return len(d.keys) <= d.n
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRecoverReturns500(t *testing.T) {
	e := echo.New()
	e.Use(Recover(applogger.Nop()))
	e.GET("/boom", func(echo.Context) error { panic("boom") })

	if rec := serve(e, http.MethodGet, "/boom"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRateLimitKeysByRoute(t *testing.T) {
	lim := &denyAfter{n: 1}
	e := echo.New()
	e.GET("/users/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RateLimit(lim, func(c echo.Context) string { return c.Param("id") }))

	if rec := serve(e, http.MethodGet, "/users/7"); rec.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/users/7"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if lim.keys[0] != "7:/users/:id" {
		t.Fatalf("key = %q", lim.keys[0])
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{101: "1xx", 204: "2xx", 302: "3xx", 429: "4xx", 503: "5xx"}
	for code, want := range cases {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %s, want %s", code, got, want)
		}
	}
}
