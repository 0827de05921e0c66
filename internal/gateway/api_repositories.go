package gateway

import (
	"net/http"

	"github.com/chkdhq/chkd/internal/engine"
	"github.com/chkdhq/chkd/models"
)

type addRepositoryRequest struct {
	AbsolutePath  string `json:"absolutePath"`
	DisplayName   string `json:"displayName"`
	DefaultBranch string `json:"defaultBranch"`
	FetchSchedule string `json:"fetchSchedule"`
}

func (gw *Gateway) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := gw.eng.ListRepositories(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, repos)
}

func (gw *Gateway) handleAddRepository(w http.ResponseWriter, r *http.Request) {
	var req addRepositoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	repo, err := gw.eng.AddRepository(r.Context(), req.AbsolutePath, req.DisplayName, req.DefaultBranch, req.FetchSchedule)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusCreated, repo)
}

type updateRepositoryRequest struct {
	DisplayName   *string `json:"displayName"`
	DefaultBranch *string `json:"defaultBranch"`
	FetchSchedule *string `json:"fetchSchedule"`
	Enabled       *bool   `json:"enabled"`
}

func (gw *Gateway) handleUpdateRepository(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req updateRepositoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	repo, err := gw.eng.UpdateRepository(r.Context(), id, engine.UpdateRepositoryInput{
		DisplayName:   req.DisplayName,
		DefaultBranch: req.DefaultBranch,
		FetchSchedule: req.FetchSchedule,
		Enabled:       req.Enabled,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, repo)
}

func (gw *Gateway) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.DeleteRepository(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (gw *Gateway) handleRepositoryProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	area := r.URL.Query().Get("area")
	progress, err := gw.eng.Items.Progress(r.Context(), id, models.AreaCode(area))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, progress)
}
