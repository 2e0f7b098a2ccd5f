// middleware содержит net/http-мидлвары accounts-сервиса: request id,
// access-лог, перехват паник, таймаут и авторизацию по ролям.
package middleware

import (
	"net/http"
)

// Middleware — обёртка над http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain оборачивает h перечисленными мидлварами; первый в списке
// оказывается внешним.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}

	return wrapped
}

// statusWriter перехватывает статус и объём ответа для access-лога.
type statusWriter struct {
	http.ResponseWriter
	status int
	count  int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.count += n
	return n, err
}

// Unwrap отдаёт исходный ResponseWriter (для http.ResponseController).
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
