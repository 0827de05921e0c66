package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chkdhq/chkd/internal/chkderr"
)

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (gw *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{
		"name":    "chkd gateway",
		"status":  "running",
		"message": "Coordination gateway is up. REST/SSE API available here.",
		"endpoints": []string{
			"GET /health",
			"GET /api/repositories",
			"POST /api/repositories",
			"GET /api/items",
			"POST /api/workers",
			"POST /api/workers/{id}/complete",
			"GET /api/signals",
			"GET /api/settings",
			"GET /api/events",
		},
	})
}

// handleEvents streams SSE to the client. Each frame is a JSON SSEEvent.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, chkderr.New(chkderr.StoreIO, "gateway.handleEvents", fmt.Errorf("streaming not supported")))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	connected, _ := json.Marshal(SSEEvent{Type: "connected"})
	fmt.Fprintf(w, "data: %s\n\n", connected)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			w.Write(frame)
			flusher.Flush()
		}
	}
}
