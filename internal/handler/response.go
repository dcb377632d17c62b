package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/httputil"
)

// decode limit leaves headroom above the maximum payload for JSON framing.
const maxRequestBodyBytes = (1 << 20) + 4096

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.InvalidInput("body", "request body too large")
		}
		return apperrors.InvalidInput("body", "malformed JSON")
	}
	return nil
}
