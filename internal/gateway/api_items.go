package gateway

import (
	"fmt"
	"net/http"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/items"
	"github.com/chkdhq/chkd/models"
)

func (gw *Gateway) handleListItems(w http.ResponseWriter, r *http.Request) {
	repoID, ok := queryInt64(r, "repoId")
	if !ok {
		writeErr(w, chkderr.New(chkderr.Validation, "gateway.handleListItems", fmt.Errorf("repoId is required")))
		return
	}
	area := r.URL.Query().Get("area")
	var (
		list []models.Item
		err  error
	)
	if area != "" {
		list, err = gw.eng.Items.ByArea(r.Context(), repoID, models.AreaCode(area))
	} else {
		list, err = gw.eng.Items.ByRepo(r.Context(), repoID)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, list)
}

func (gw *Gateway) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	item, err := gw.eng.Items.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, item)
}

type createItemRequest struct {
	RepoID          int64    `json:"repoId"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Story           string   `json:"story"`
	KeyRequirements []string `json:"keyRequirements"`
	FilesToChange   []string `json:"filesToChange"`
	Testing         []string `json:"testing"`
	AreaCode        string   `json:"areaCode"`
	WorkflowType    string   `json:"workflowType"`
	Priority        string   `json:"priority"`
}

func (gw *Gateway) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	priority := models.ItemPriority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	item, err := gw.eng.CreateTopLevelItem(r.Context(), items.CreateInput{
		RepoID:          req.RepoID,
		Title:           req.Title,
		Description:     req.Description,
		Story:           req.Story,
		KeyRequirements: req.KeyRequirements,
		FilesToChange:   req.FilesToChange,
		Testing:         req.Testing,
		AreaCode:        models.AreaCode(req.AreaCode),
		WorkflowType:    req.WorkflowType,
		Priority:        priority,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusCreated, item)
}

type updateItemRequest struct {
	Title           *string   `json:"title"`
	Description     *string   `json:"description"`
	Story           *string   `json:"story"`
	KeyRequirements *[]string `json:"keyRequirements"`
	FilesToChange   *[]string `json:"filesToChange"`
	Testing         *[]string `json:"testing"`
	WorkflowType    *string   `json:"workflowType"`
	Status          *string   `json:"status"`
	Priority        *string   `json:"priority"`
}

func (gw *Gateway) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req updateItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	in := items.UpdateInput{
		Title:           req.Title,
		Description:     req.Description,
		Story:           req.Story,
		KeyRequirements: req.KeyRequirements,
		FilesToChange:   req.FilesToChange,
		Testing:         req.Testing,
		WorkflowType:    req.WorkflowType,
	}
	if req.Status != nil {
		s := models.ItemStatus(*req.Status)
		in.Status = &s
	}
	if req.Priority != nil {
		p := models.ItemPriority(*req.Priority)
		in.Priority = &p
	}
	item, err := gw.eng.Items.Update(r.Context(), id, in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, item)
}

func (gw *Gateway) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.Items.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

type moveItemRequest struct {
	AreaCode string `json:"areaCode"`
}

func (gw *Gateway) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req moveItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	item, err := gw.eng.MoveItem(r.Context(), id, models.AreaCode(req.AreaCode))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, item)
}

type addChildRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

func (gw *Gateway) handleAddChildItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req addChildRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	priority := models.ItemPriority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	child, err := gw.eng.AddChild(r.Context(), id, req.Title, req.Description, priority)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusCreated, child)
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

func (gw *Gateway) handleSetItemTags(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req setTagsRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := gw.eng.Items.SetTags(r.Context(), id, req.Tags); err != nil {
		writeErr(w, err)
		return
	}
	item, err := gw.eng.Items.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, item)
}

func (gw *Gateway) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	repoID, ok := queryInt64(r, "repoId")
	if !ok {
		writeErr(w, chkderr.New(chkderr.Validation, "gateway.handleSearchItems", fmt.Errorf("repoId is required")))
		return
	}
	q := r.URL.Query().Get("q")
	limit := queryIntDefault(r, "limit", 20)
	results, err := gw.eng.Items.Search(r.Context(), repoID, q, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, results)
}

func (gw *Gateway) handleItemTBCCheck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, err)
		return
	}
	warnings, err := gw.eng.Items.TBCCheck(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, warnings)
}
