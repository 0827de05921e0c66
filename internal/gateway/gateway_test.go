package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/chkdhq/chkd/internal/clock"
	"github.com/chkdhq/chkd/internal/config"
	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/internal/store/storetest"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	db := storetest.Open(t)
	eng := engine.New(&config.Config{}, db, clock.Real{})
	return New(&config.Config{}, eng)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHandleAddAndListRepositories(t *testing.T) {
	gw := newTestGateway(t)
	h := buildHandler(gw)

	body, _ := json.Marshal(addRepositoryRequest{AbsolutePath: "/tmp/repo-a", DisplayName: "Repo A"})
	req := httptest.NewRequest(http.MethodPost, "/api/repositories", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/repositories: status %d, body %s", rec.Code, rec.Body)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/repositories", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/repositories: status %d, body %s", rec.Code, rec.Body)
	}
	env = decodeEnvelope(t, rec)
	list, ok := env.Data.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one repository, got %+v", env.Data)
	}
}

func TestHandleAddRepositoryRejectsMissingPath(t *testing.T) {
	gw := newTestGateway(t)
	h := buildHandler(gw)

	body, _ := json.Marshal(addRepositoryRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/repositories", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected failure envelope, got %+v", env)
	}
}

func TestHandleCreateAndMoveItem(t *testing.T) {
	gw := newTestGateway(t)
	h := buildHandler(gw)

	body, _ := json.Marshal(createItemRequest{RepoID: 1, Title: "Feature A", AreaCode: "SD"})
	req := httptest.NewRequest(http.MethodPost, "/api/items", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/items: status %d, body %s", rec.Code, rec.Body)
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	id := int64(data["id"].(float64))
	if data["display_id"] != "SD.1" {
		t.Fatalf("expected displayId SD.1, got %v", data["display_id"])
	}

	moveBody, _ := json.Marshal(moveItemRequest{AreaCode: "FE"})
	req = httptest.NewRequest(http.MethodPost, "/api/items/"+strconv.FormatInt(id, 10)+"/move", bytes.NewReader(moveBody))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/items/{id}/move: status %d, body %s", rec.Code, rec.Body)
	}
	env = decodeEnvelope(t, rec)
	data = env.Data.(map[string]any)
	if data["display_id"] != "FE.1" {
		t.Fatalf("expected displayId FE.1 after move, got %v", data["display_id"])
	}
}

func TestHandleDismissUnknownSignalIsNoop(t *testing.T) {
	gw := newTestGateway(t)
	h := buildHandler(gw)

	req := httptest.NewRequest(http.MethodDelete, "/api/signals/signal-does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
}

