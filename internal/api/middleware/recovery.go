package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jdziat/workbench-jobs/internal/api/response"
)

// Recovery turns a handler panic into a 500 response.
func Recovery(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered",
						zap.Any("error", err),
						zap.Stack("stack"),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					response.Error(w, http.StatusInternalServerError,
						"INTERNAL_ERROR", "An unexpected error occurred", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
