package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DanielPopoola/chargecore/internal/interfaces/rest"
)

var timeoutBody = func() string {
	body, _ := json.Marshal(rest.ErrorResponse{
		Error: rest.ErrorDetail{Code: "TIMEOUT", Message: "Request timeout"},
	})
	return string(body)
}()

// Timeout bounds each request. The handler's context is cancelled when the deadline passes,
// which also cancels any in-flight gateway call.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
