package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/requestdata"
	"github.com/diegobr89/immich/internal/services"
	"github.com/diegobr89/immich/internal/types"
)

type AlbumHandler struct {
	log          *logger.Logger
	albumService services.AlbumService
}

func NewAlbumHandler(log *logger.Logger, albumService services.AlbumService) *AlbumHandler {
	return &AlbumHandler{
		log:          log.With("handler", "AlbumHandler"),
		albumService: albumService,
	}
}

// smartSearchDTO accepts the persisted specification shape plus a flat
// personIds list, which is resolved into the people relation server-side.
type smartSearchDTO struct {
	types.AlbumSmartSearch
	PersonIDs []uuid.UUID `json:"personIds"`
}

func (dto *smartSearchDTO) toModel() *types.AlbumSmartSearch {
	if dto == nil {
		return nil
	}
	model := dto.AlbumSmartSearch
	for _, id := range dto.PersonIDs {
		model.People = append(model.People, types.Person{ID: id})
	}
	return &model
}

type createAlbumRequest struct {
	Name        string          `json:"albumName" binding:"required"`
	Description string          `json:"description"`
	AssetIDs    []uuid.UUID     `json:"assetIds"`
	SmartSearch *smartSearchDTO `json:"smartSearch"`
}

func (h *AlbumHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	album, err := h.albumService.Create(c.Request.Context(), rd.UserID, services.CreateAlbumInput{
		Name:        req.Name,
		Description: req.Description,
		AssetIDs:    req.AssetIDs,
		SmartSearch: req.SmartSearch.toModel(),
	})
	if err != nil {
		h.log.Error("Create album failed", "owner_id", rd.UserID, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, album)
}

func (h *AlbumHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	albums, err := h.albumService.GetOwned(c.Request.Context(), rd.UserID)
	if err != nil {
		h.log.Error("List albums failed", "owner_id", rd.UserID, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"albums": albums})
}

func (h *AlbumHandler) Get(c *gin.Context) {
	rd, albumID, ok := h.callerAndAlbum(c)
	if !ok {
		return
	}
	withAssets := c.Query("withoutAssets") != "true"
	album, err := h.albumService.Get(c.Request.Context(), rd.UserID, albumID, withAssets)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, album)
}

type updateAlbumRequest struct {
	Name             *string    `json:"albumName"`
	Description      *string    `json:"description"`
	ThumbnailAssetID *uuid.UUID `json:"albumThumbnailAssetId"`
}

func (h *AlbumHandler) Update(c *gin.Context) {
	rd, albumID, ok := h.callerAndAlbum(c)
	if !ok {
		return
	}
	var req updateAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	album, err := h.albumService.Update(c.Request.Context(), rd.UserID, albumID, services.UpdateAlbumInput{
		Name:             req.Name,
		Description:      req.Description,
		ThumbnailAssetID: req.ThumbnailAssetID,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, album)
}

func (h *AlbumHandler) Delete(c *gin.Context) {
	rd, albumID, ok := h.callerAndAlbum(c)
	if !ok {
		return
	}
	if err := h.albumService.Delete(c.Request.Context(), rd.UserID, albumID); err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": albumID})
}

type bulkIDsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

func (h *AlbumHandler) AddAssets(c *gin.Context) {
	rd, albumID, ok := h.callerAndAlbum(c)
	if !ok {
		return
	}
	var req bulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.albumService.AddAssets(c.Request.Context(), rd.UserID, albumID, req.IDs); err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"added": len(req.IDs)})
}

func (h *AlbumHandler) RemoveAssets(c *gin.Context) {
	rd, albumID, ok := h.callerAndAlbum(c)
	if !ok {
		return
	}
	var req bulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.albumService.RemoveAssets(c.Request.Context(), rd.UserID, albumID, req.IDs); err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"removed": len(req.IDs)})
}

type addPeopleRequest struct {
	IDs      []uuid.UUID `json:"ids" binding:"required"`
	Together bool        `json:"together"`
}

func (h *AlbumHandler) AddPeople(c *gin.Context) {
	rd, albumID, ok := h.callerAndAlbum(c)
	if !ok {
		return
	}
	var req addPeopleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	album, err := h.albumService.AddPeople(c.Request.Context(), rd.UserID, albumID, req.IDs, req.Together)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, album)
}

func (h *AlbumHandler) callerAndAlbum(c *gin.Context) (*requestdata.RequestData, uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return nil, uuid.Nil, false
	}
	albumID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_album_id", err)
		return nil, uuid.Nil, false
	}
	return rd, albumID, true
}
