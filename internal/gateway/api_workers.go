package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/workers"
	"github.com/chkdhq/chkd/models"
)

type spawnWorkerRequest struct {
	RepoPath      string `json:"repoPath"`
	TaskID        string `json:"taskId"`
	TaskTitle     string `json:"taskTitle"`
	Username      string `json:"username"`
	NextTaskID    string `json:"nextTaskId"`
	NextTaskTitle string `json:"nextTaskTitle"`
}

func (gw *Gateway) handleSpawnWorker(w http.ResponseWriter, r *http.Request) {
	var req spawnWorkerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	repo, err := gw.eng.RepositoryByPath(r.Context(), req.RepoPath)
	if err != nil {
		writeErr(w, err)
		return
	}
	username := req.Username
	if username == "" {
		username = "agent"
	}
	worker, err := gw.eng.SpawnWorker(r.Context(), *repo, workers.CreateInput{
		RepoID:        repo.ID,
		Username:      username,
		TaskID:        req.TaskID,
		TaskTitle:     req.TaskTitle,
		NextTaskID:    req.NextTaskID,
		NextTaskTitle: req.NextTaskTitle,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusCreated, worker)
	gw.broadcaster.send(SSEEvent{Type: "worker.spawned", Payload: worker})
}

type updateWorkerRequest struct {
	Status   *string `json:"status"`
	Message  *string `json:"message"`
	Progress *int    `json:"progress"`
}

func (gw *Gateway) handleUpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathStringID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req updateWorkerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	in := workers.UpdateInput{Message: req.Message, Progress: req.Progress}
	if req.Status != nil {
		s := models.WorkerStatus(*req.Status)
		in.Status = &s
	}
	worker, err := gw.eng.Workers.Update(r.Context(), id, in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, worker)
	gw.broadcaster.send(SSEEvent{Type: "worker.updated", Payload: worker})
}

func (gw *Gateway) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathStringID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	force := queryBool(r, "force")
	if err := gw.eng.DeleteWorker(r.Context(), id, force); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

type completeWorkerRequest struct {
	AutoMerge bool `json:"autoMerge"`
}

func (gw *Gateway) handleCompleteWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathStringID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req completeWorkerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	result, err := gw.eng.CompleteWorker(r.Context(), id, req.AutoMerge)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, result)
	gw.broadcaster.send(SSEEvent{Type: "worker.completed", Payload: result})
}

type resolveWorkerRequest struct {
	Strategy string   `json:"strategy"`
	Files    []string `json:"files"`
}

func (gw *Gateway) handleResolveWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathStringID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req resolveWorkerRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	result, err := gw.eng.ResolveWorker(r.Context(), id, req.Strategy, req.Files)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, result)
	gw.broadcaster.send(SSEEvent{Type: "worker.resolved", Payload: result})
}

func (gw *Gateway) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	repo, err := gw.repoFromQuery(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	list, err := gw.eng.Workers.ByRepo(r.Context(), repo.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, list)
}

func (gw *Gateway) handleDeadWorkers(w http.ResponseWriter, r *http.Request) {
	repo, err := gw.repoFromQuery(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	thresholdMinutes := queryIntDefault(r, "thresholdMinutes", 2)
	list, err := gw.eng.Workers.ByRepo(r.Context(), repo.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	cutoff := time.Now().Add(-time.Duration(thresholdMinutes) * time.Minute)
	dead := make([]models.Worker, 0)
	for _, wk := range list {
		if wk.Status.Terminal() {
			continue
		}
		if wk.HeartbeatAt == nil || wk.HeartbeatAt.Before(cutoff) {
			dead = append(dead, wk)
		}
	}
	writeOK(w, http.StatusOK, dead)
}

func (gw *Gateway) repoFromQuery(r *http.Request) (*models.Repository, error) {
	if repoPath := r.URL.Query().Get("repoPath"); repoPath != "" {
		return gw.eng.RepositoryByPath(r.Context(), repoPath)
	}
	if repoID, ok := queryInt64(r, "repoId"); ok {
		return gw.eng.GetRepository(r.Context(), repoID)
	}
	return nil, chkderr.New(chkderr.Validation, "gateway.repoFromQuery", fmt.Errorf("repoPath or repoId is required"))
}
