package httpapi

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/libris-io/libris/internal/core"
)

var json = jsoniter.ConfigFastest

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON serializes v with jsoniter and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a domain error onto an HTTP status and writes the message.
// Internal errors are masked; everything else carries the sentinel text.
func writeError(w http.ResponseWriter, err error) {
	status := statusForKind(core.KindOf(err))

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	writeJSON(w, status, errorBody{Error: message})
}

func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInvalidArgument:
		return http.StatusBadRequest
	case core.KindUnavailable, core.KindConflict:
		return http.StatusConflict
	case core.KindLimitExceeded:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.ErrInvalidInput
	}

	return nil
}
