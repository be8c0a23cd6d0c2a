package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
)

const maxBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Op    string `json:"op,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	body := errorBody{Error: err.Error(), Code: string(apperr.CodeOf(err))}
	var re *apperr.RemoteServiceError
	if errors.As(err, &re) {
		body.Op = re.Op
	}
	if status >= http.StatusInternalServerError {
		a.Log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.InvalidArgument("body", "decode request body: %v", err)
	}
	return nil
}
