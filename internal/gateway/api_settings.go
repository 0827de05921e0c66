package gateway

import "net/http"

func (gw *Gateway) handleListSettings(w http.ResponseWriter, r *http.Request) {
	all, err := gw.eng.Settings.All(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, all)
}

func (gw *Gateway) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key, err := pathStringID(r, "key")
	if err != nil {
		writeErr(w, err)
		return
	}
	value, ok, err := gw.eng.Settings.Get(r.Context(), key)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "setting not found"})
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

type putSettingRequest struct {
	Value string `json:"value"`
}

func (gw *Gateway) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key, err := pathStringID(r, "key")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req putSettingRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.Settings.Set(r.Context(), key, req.Value); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

func (gw *Gateway) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	key, err := pathStringID(r, "key")
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.Settings.Delete(r.Context(), key); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
