package gateway

import "net/http"

type migrateRequest struct {
	RepoID   int64  `json:"repoId"`
	RepoPath string `json:"repoPath"`
}

func (gw *Gateway) handlePreviewMigration(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	result, err := gw.eng.PreviewMigration(r.Context(), req.RepoID, req.RepoPath)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, result)
}

func (gw *Gateway) handleRunMigration(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	result, err := gw.eng.RunMigration(r.Context(), req.RepoID, req.RepoPath)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, result)
}
