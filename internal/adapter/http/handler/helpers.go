package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fengq/loanbook/internal/adapter/http/dto"
	"github.com/fengq/loanbook/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrActiveOrderExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrderNotActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrderNotBreached):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNothingToUndo):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUndoLimitReached):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAmountTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrExceedsOutstanding):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCustomer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidExpenseKind):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidGroupID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidChatID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoteTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseInt64Query parses an int64 query parameter; zero when absent.
func parseInt64Query(r *http.Request, key string) int64 {
	val := r.URL.Query().Get(key)
	if val == "" {
		return 0
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// parseDateQuery parses a YYYY-MM-DD query parameter; zero when absent
// or malformed.
func parseDateQuery(r *http.Request, key string) time.Time {
	val := r.URL.Query().Get(key)
	if val == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseIDParam parses the {id} route parameter.
func parseIDParam(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
