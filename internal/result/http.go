package result

import (
	"encoding/json"
	"net/http"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindPartial:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// Write serializes the envelope as JSON. Successful results use the given
// status; failures derive theirs from the error kind.
func Write[T any](w http.ResponseWriter, okStatus int, r Result[T]) {
	w.Header().Set("Content-Type", "application/json")
	if r.Success {
		w.WriteHeader(okStatus)
	} else {
		w.WriteHeader(StatusFor(r.Kind))
	}
	json.NewEncoder(w).Encode(r)
}
