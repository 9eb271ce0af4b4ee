package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
)

func TestRequestIDMiddlewarePropagatesOneID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	lgr := logger.New("test", logger.LevelError)
	handler := LoggingMiddleware(lgr)(inner)
	handler = RecoveryMiddleware(lgr)(handler)
	handler = RequestIDMiddleware()(handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o1", nil))

	if seen == "" {
		t.Fatal("request id not present in handler context")
	}
	if got := rec.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("X-Request-Id header = %q, context id = %q", got, seen)
	}

	firstID := seen
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/orders/o1", nil))
	if rec2.Header().Get("X-Request-Id") == firstID {
		t.Error("second request reused the first request's id")
	}
}

func TestRecoveryMiddlewareConvertsPanic(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	handler := RecoveryMiddleware(logger.New("test", logger.LevelError))(inner)
	handler = RequestIDMiddleware()(handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
