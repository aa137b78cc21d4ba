package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rpgtable/internal/metrics"
)

// unmatchedRoute はどのルートにも一致しなかったリクエストのラベル。
// パスをそのままラベルにするとカーディナリティが発散する。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はリクエスト数とレイテンシを記録するミドルウェアを返す。
// routeラベルにはchiのルートパターン（例: /rpg/{id}）を使用する。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			collector.RecordRequest(r.Method, routePattern(r), rec.statusCode, time.Since(start))
		})
	}
}

// routePattern はルーティング後のchiルートパターンを返す。未一致の場合はunmatchedRoute。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
