// Package response writes JSON bodies and RFC7807 problems for the API
// handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/airsense/aqiforecast/internal/api/middleware"
	"github.com/airsense/aqiforecast/internal/api/models"
)

// JSON writes data as JSON with the given status and echoes the request ID
// in X-Request-Id. The body is encoded before any header is written; a
// value that cannot be encoded is answered with a 500 problem.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	var body []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			Error(w, r, models.NewInternalError(traceID(r), "response could not be encoded"))
			return
		}
		body = append(b, '\n')
	}

	if id := traceID(r); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// MethodNotAllowed writes a 405 problem naming the rejected method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.NewMethodNotAllowed(traceID(r), r.Method+" is not supported on "+r.URL.Path))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
