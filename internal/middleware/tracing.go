package middleware

import (
	"net/http"

	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing starts a server span per request named "METHOD /route/{pattern}".
// otelhttp formats the name again once the handler returns, by which time chi
// has matched the route.
func Tracing(opts ...otelhttp.Option) func(http.Handler) http.Handler {
	opts = append(opts, otelhttp.WithSpanNameFormatter(spanName))
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, observability.ServiceName+".http", opts...)
	}
}

func spanName(_ string, r *http.Request) string {
	return r.Method + " " + routePattern(r)
}
