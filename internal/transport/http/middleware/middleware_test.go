package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logctx "github.com/pribylovaa/go-accounts-service/internal/pkg/log"
)

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var trace []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "handler")
	}), mw("first"), mw("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "handler"}, trace)
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	t.Parallel()

	var fromCtx string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, fromCtx, 32)
	require.Equal(t, fromCtx, rec.Header().Get("X-Request-Id"))
}

func TestRequestID_PassesThroughExisting(t *testing.T) {
	t.Parallel()

	var fromCtx string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-rid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "client-rid", fromCtx)
	require.Equal(t, "client-rid", rec.Header().Get("X-Request-Id"))
}

func TestRequestIDFrom_EmptyContext(t *testing.T) {
	t.Parallel()

	require.Empty(t, RequestIDFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}

func TestLogging_RecordsStatusAndRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), RequestID(), Logging(logger))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/accounts", nil))

	out := buf.String()
	require.Contains(t, out, `"status":418`)
	require.Contains(t, out, `"path":"/accounts"`)
	require.Contains(t, out, `"request_id"`)
}

func TestRecover_PanicTurnsInto500(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Recover()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logctx.Into(req.Context(), logger))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, req)
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, buf.String(), "panic")
}

func TestTimeout_SetsDeadlineOnce(t *testing.T) {
	t.Parallel()

	var hadDeadline bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadDeadline = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, hadDeadline)

	// Нулевое значение выключает мидлвар.
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, Timeout(0)(next))
}

func TestStatusWriter_DefaultsTo200OnWrite(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sw := newStatusWriter(rec)

	n, err := sw.Write([]byte("ok"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, http.StatusOK, sw.status)
	require.Equal(t, 2, sw.count)
}
