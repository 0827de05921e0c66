package gateway

import "net/http"

func (gw *Gateway) handleListSignals(w http.ResponseWriter, r *http.Request) {
	repo, err := gw.repoFromQuery(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	// Dismissed signals stay stored with dismissed set; this endpoint lists
	// only the undismissed ones, via Active.
	list, err := gw.eng.Signals.Active(r.Context(), repo.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, list)
}

func (gw *Gateway) handleDismissSignal(w http.ResponseWriter, r *http.Request) {
	id, err := pathStringID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.Signals.Dismiss(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
