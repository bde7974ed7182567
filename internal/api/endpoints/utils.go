package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"channah-support-chat/internal/api"
)

type HTTPError = api.HTTPError

const maxBodyBytes = 64 * 1024

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

// decodeJSON reads a bounded JSON body into v. what names the payload in
// the logged error.
func decodeJSON(w http.ResponseWriter, r *http.Request, what string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			Err:        fmt.Errorf("decode %s request: %w", what, err),
		}
	}
	return nil
}
