package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/watchsec/commnode/internal/api/request"
	"github.com/watchsec/commnode/internal/api/response"
)

const (
	maxBodyBytes = 1 << 20

	msgNotJSON = "Request must be JSON"
)

// RequireJSON rejects requests whose body is not a JSON object holding every
// field in fields. The body is restored for the next handler.
func RequireJSON(fields ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						response.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
						return
					}
					response.WriteError(w, http.StatusBadRequest, msgNotJSON)
					return
				}
			}

			if err := request.CheckFields(r.Header.Get("Content-Type"), body, fields...); err != nil {
				var missing *request.MissingFieldsError
				if errors.As(err, &missing) {
					response.WriteError(w, http.StatusBadRequest, missing.Error())
					return
				}
				response.WriteError(w, http.StatusBadRequest, msgNotJSON)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
