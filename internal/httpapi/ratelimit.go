package httpapi

import (
	"math"
	"net/http"
	"strconv"
)

// rateLimit rejects requests with 429 when the shared limiter is exhausted.
func rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := limiter
		if l == nil {
			next.ServeHTTP(w, r)
			return
		}
		res := l.Reserve()
		if !res.OK() {
			IncrementBackpressure(reasonRateLimit)
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if d := res.Delay(); d > 0 {
			res.Cancel()
			IncrementBackpressure(reasonRateLimit)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
