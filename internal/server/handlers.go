package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"pollboard/internal/audit"
	"pollboard/internal/bulkops"
	"pollboard/internal/models"
)

// BulkHandler exposes the bulk operation orchestrator.
type BulkHandler struct {
	svc *bulkops.Service
}

type startOperationBody struct {
	OperationType    string                 `json:"operation_type"`
	TargetIDs        []int64                `json:"target_ids"`
	Parameters       map[string]interface{} `json:"parameters"`
	ConfirmationCode string                 `json:"confirmation_code"`
}

// Start handles POST /api/bulk/operations
func (h *BulkHandler) Start(w http.ResponseWriter, r *http.Request) {
	admin := r.Header.Get("X-Admin-User")
	if admin == "" {
		writeError(w, http.StatusBadRequest, "X-Admin-User header is required")
		return
	}

	var body startOperationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := bulkops.Request{
		OperationType:    bulkops.OperationType(body.OperationType),
		TargetIDs:        body.TargetIDs,
		Parameters:       body.Parameters,
		AdminUserID:      admin,
		ConfirmationCode: body.ConfirmationCode,
	}

	operationID, err := h.svc.Start(r.Context(), req)
	if err != nil {
		var verr *bulkops.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:      verr.Message,
				Code:       verr.Code,
				InvalidIDs: verr.InvalidIDs,
			})
		case errors.Is(err, bulkops.ErrQueueFull):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to start operation")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"operation_id": operationID})
}

type progressResponse struct {
	*bulkops.Progress
	ProgressPercentage int `json:"progress_percentage"`
}

// GetProgress handles GET /api/bulk/operations/{id}
func (h *BulkHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prog := h.svc.GetProgress(id)
	if prog == nil {
		writeError(w, http.StatusNotFound, "operation not found")
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Progress:           prog,
		ProgressPercentage: prog.ProgressPercentage(),
	})
}

// GetResult handles GET /api/bulk/operations/{id}/result
func (h *BulkHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok := h.svc.Result(id)
	if !ok {
		writeError(w, http.StatusNotFound, "operation not finished or unknown")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// List handles GET /api/bulk/operations?admin_user_id=&limit=
func (h *BulkHandler) List(w http.ResponseWriter, r *http.Request) {
	adminUserID := r.URL.Query().Get("admin_user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ops := h.svc.List(adminUserID, limit)
	out := make([]progressResponse, len(ops))
	for i, p := range ops {
		out[i] = progressResponse{Progress: p, ProgressPercentage: p.ProgressPercentage()}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"operations": out})
}

// Cancel handles POST /api/bulk/operations/{id}/cancel
func (h *BulkHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	admin := r.Header.Get("X-Admin-User")
	if admin == "" {
		writeError(w, http.StatusBadRequest, "X-Admin-User header is required")
		return
	}

	id := chi.URLParam(r, "id")
	cancelled := h.svc.Cancel(id, admin)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// QueueStatus handles GET /api/bulk/queue
func (h *BulkHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.QueueStatus())
}

// PollHandler exposes read-side poll endpoints.
type PollHandler struct {
	db *gorm.DB
}

// Get handles GET /api/polls/{id}
func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid poll id")
		return
	}

	var poll models.Poll
	if err := h.db.WithContext(r.Context()).First(&poll, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "poll not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var options []models.PollOption
	if err := h.db.WithContext(r.Context()).Order("position").Find(&options, "poll_id = ?", id).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"poll":    poll,
		"options": options,
	})
}

// List handles GET /api/polls?status=&guild_id=&limit=
func (h *PollHandler) List(w http.ResponseWriter, r *http.Request) {
	q := h.db.WithContext(r.Context()).Model(&models.Poll{}).Order("created_at DESC")

	if status := r.URL.Query().Get("status"); status != "" {
		if !models.ValidPollStatus(status) {
			writeError(w, http.StatusBadRequest, "invalid poll status")
			return
		}
		q = q.Where("status = ?", status)
	}
	if guildID := r.URL.Query().Get("guild_id"); guildID != "" {
		q = q.Where("guild_id = ?", guildID)
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var polls []models.Poll
	if err := q.Limit(limit).Find(&polls).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"polls": polls})
}

// AuditHandler exposes the durable bulk operation trail.
type AuditHandler struct {
	svc *audit.Service
}

// ListRecent handles GET /api/audit?limit=
func (h *AuditHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
