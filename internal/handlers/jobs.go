package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/repos"
	"github.com/diegobr89/immich/internal/requestdata"
	"github.com/diegobr89/immich/internal/services"
	"github.com/diegobr89/immich/internal/types"
)

const jobTypeSmartAlbumMatch = "smart_album_match"

type JobHandler struct {
	log        *logger.Logger
	smartAlbum services.SmartAlbumService
	jobRunRepo repos.JobRunRepo
}

func NewJobHandler(log *logger.Logger, smartAlbum services.SmartAlbumService, jobRunRepo repos.JobRunRepo) *JobHandler {
	return &JobHandler{
		log:        log.With("handler", "JobHandler"),
		smartAlbum: smartAlbum,
		jobRunRepo: jobRunRepo,
	}
}

type triggerMatchRequest struct {
	AssetID uuid.UUID `json:"assetId" binding:"required"`
}

// TriggerSmartAlbumMatch runs an evaluation for one asset synchronously and
// records the outcome as a job run. The normal path is the ingest pipeline
// firing the same evaluation; this endpoint exists for manual retries.
func (h *JobHandler) TriggerSmartAlbumMatch(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req triggerMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	payload, _ := json.Marshal(gin.H{"assetId": req.AssetID})
	run, err := h.jobRunRepo.Create(c.Request.Context(), nil, &types.JobRun{
		OwnerUserID: rd.UserID,
		JobType:     jobTypeSmartAlbumMatch,
		Payload:     payload,
	})
	if err != nil {
		h.log.Error("Failed to record job run", "error", err)
		RespondDomainError(c, err)
		return
	}

	status, evalErr := h.smartAlbum.HandleAssetMatch(c.Request.Context(), req.AssetID)
	updates := map[string]interface{}{"status": string(status)}
	if evalErr != nil {
		updates["error"] = evalErr.Error()
	}
	if err := h.jobRunRepo.UpdateFields(c.Request.Context(), nil, run.ID, updates); err != nil {
		h.log.Error("Failed to update job run", "job_run_id", run.ID, "error", err)
	}
	if evalErr != nil {
		h.log.Error("Smart album evaluation failed", "asset_id", req.AssetID, "error", evalErr)
		RespondDomainError(c, evalErr)
		return
	}
	RespondOK(c, gin.H{"jobRunId": run.ID, "status": status})
}
