package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/tuition-engine/billing"
)

// envelope is the response body of every JSON action.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

const timestampLayout = "2006-01-02 15:04:05"

var emptyData = []any{}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	if data == nil {
		data = emptyData
	}
	writeJSON(w, status, envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: h.now().Format(timestampLayout),
	})
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{
		Success:   false,
		Data:      emptyData,
		Message:   message,
		Timestamp: h.now().Format(timestampLayout),
	})
}

// writeError maps an engine error to its status and message. Store
// failures are logged and hidden from clients unless debug is on.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, action string, err error) int {
	status, message := h.classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("action failed",
			zap.String("action", action),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
	}
	h.writeFailure(w, status, message)
	return status
}

func (h *Handler) classify(err error) (int, string) {
	var (
		validation *billing.ValidationError
		notFound   *billing.NotFoundError
		forbidden  *billing.AuthorizationError
		unauth     *billing.AuthenticationError
		exceeded   *billing.BalanceExceededError
	)
	switch {
	case errors.As(err, &exceeded):
		return http.StatusBadRequest, exceeded.Error()
	case errors.Is(err, billing.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "Duplicate idempotency key"
	case errors.Is(err, billing.ErrDuplicateReference):
		return http.StatusConflict, "Duplicate billing reference"
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &forbidden):
		return http.StatusForbidden, forbidden.Error()
	case errors.As(err, &unauth):
		return http.StatusUnauthorized, unauth.Error()
	}
	if h.debug {
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}
