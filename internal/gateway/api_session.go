package gateway

import (
	"fmt"
	"net/http"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/session"
	"github.com/chkdhq/chkd/models"
)

func requiredRepoID(r *http.Request) (int64, error) {
	repoID, ok := queryInt64(r, "repoId")
	if !ok {
		return 0, chkderr.New(chkderr.Validation, "gateway.requiredRepoID", fmt.Errorf("repoId is required"))
	}
	return repoID, nil
}

func (gw *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	repoID, err := requiredRepoID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	sess, err := gw.eng.Session.Get(r.Context(), repoID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

type startSessionRequest struct {
	RepoID    int64  `json:"repoId"`
	TaskID    string `json:"taskId"`
	TaskTitle string `json:"taskTitle"`
}

func (gw *Gateway) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	sess, err := gw.eng.Session.Start(r.Context(), req.RepoID, req.TaskID, req.TaskTitle)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

func (gw *Gateway) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoID int64 `json:"repoId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	sess, err := gw.eng.Session.Clear(r.Context(), req.RepoID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

type updateSessionRequest struct {
	RepoID      int64   `json:"repoId"`
	CurrentTask *string `json:"currentTask"`
	CurrentItem *string `json:"currentItem"`
	Status      *string `json:"status"`
	Mode        *string `json:"mode"`
	Iteration   *int    `json:"iteration"`
	StartTime   *bool   `json:"startTime"`
}

func (gw *Gateway) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	in := session.UpdateInput{
		CurrentTask: req.CurrentTask,
		CurrentItem: req.CurrentItem,
		Iteration:   req.Iteration,
		StartTime:   req.StartTime,
	}
	if req.Status != nil {
		s := models.SessionStatus(*req.Status)
		in.Status = &s
	}
	if req.Mode != nil {
		m := models.SessionMode(*req.Mode)
		in.Mode = &m
	}
	sess, err := gw.eng.Session.Update(r.Context(), req.RepoID, in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

func (gw *Gateway) handleWorkingOn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoID int64  `json:"repoId"`
		TaskID string `json:"taskId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	sess, err := gw.eng.WorkingOn(r.Context(), req.RepoID, req.TaskID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

func (gw *Gateway) handleAlsoDid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoID int64  `json:"repoId"`
		Text   string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.Session.AddAlsoDid(r.Context(), req.RepoID, req.Text); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (gw *Gateway) handleSetAnchor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoID    int64  `json:"repoId"`
		TaskID    string `json:"taskId"`
		TaskTitle string `json:"taskTitle"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	sess, err := gw.eng.Session.SetAnchor(r.Context(), req.RepoID, req.TaskID, req.TaskTitle, models.AnchorSetByUI)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

func (gw *Gateway) handleClearAnchor(w http.ResponseWriter, r *http.Request) {
	repoID, err := requiredRepoID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	sess, err := gw.eng.Session.ClearAnchor(r.Context(), repoID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

func (gw *Gateway) handleQueueGet(w http.ResponseWriter, r *http.Request) {
	repoID, err := requiredRepoID(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	titles, err := gw.eng.QueueGet(r.Context(), repoID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, titles)
}

func (gw *Gateway) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoID int64  `json:"repoId"`
		Title  string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.QueueAdd(r.Context(), req.RepoID, req.Title); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (gw *Gateway) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoID int64  `json:"repoId"`
		Title  string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.QueueRemove(r.Context(), req.RepoID, req.Title); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
