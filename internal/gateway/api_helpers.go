package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/chkdhq/chkd/internal/chkderr"
)

// --- HTTP response helpers -------------------------------------------------
//
// Every response carries the uniform envelope: {success, data} on success,
// {success, error} on failure, with an HTTP status chosen from the error's
// chkderr.Kind.

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusForErr(err), envelope{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForErr maps a chkd error's Kind to the HTTP status spec §7 assigns
// it. Errors that don't carry a Kind (decode failures, missing params) are
// treated as validation errors.
func statusForErr(err error) int {
	kind, ok := chkderr.KindOf(err)
	if !ok {
		return http.StatusBadRequest
	}
	switch kind {
	case chkderr.Validation:
		return http.StatusBadRequest
	case chkderr.NotFound:
		return http.StatusNotFound
	case chkderr.Conflict:
		return http.StatusConflict
	default: // Git, StoreIO, StoreCorruption, Timeout
		return http.StatusInternalServerError
	}
}

// pathID extracts a numeric path parameter by name from the request.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, chkderr.New(chkderr.Validation, "gateway.pathID", fmt.Errorf("missing path parameter %q", name))
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, chkderr.New(chkderr.Validation, "gateway.pathID", fmt.Errorf("invalid id %q", raw))
	}
	return id, nil
}

func pathStringID(r *http.Request, name string) (string, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return "", chkderr.New(chkderr.Validation, "gateway.pathStringID", fmt.Errorf("missing path parameter %q", name))
	}
	return raw, nil
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return chkderr.New(chkderr.Validation, "gateway.decodeBody", fmt.Errorf("missing request body"))
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return chkderr.New(chkderr.Validation, "gateway.decodeBody", err)
	}
	return nil
}

func queryInt64(r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func queryBool(r *http.Request, name string) bool {
	raw := r.URL.Query().Get(name)
	return raw == "1" || raw == "true"
}

func queryIntDefault(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
