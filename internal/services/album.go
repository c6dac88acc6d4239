package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/repos"
	"github.com/diegobr89/immich/internal/types"
)

type CreateAlbumInput struct {
	Name        string
	Description string
	AssetIDs    []uuid.UUID
	SmartSearch *types.AlbumSmartSearch
}

type UpdateAlbumInput struct {
	Name             *string
	Description      *string
	ThumbnailAssetID *uuid.UUID
}

// AlbumService is the data-access glue around albums. Smart-album matching
// itself lives in SmartAlbumService; this service owns creation (where the
// search specification is validated) and manual curation.
type AlbumService interface {
	Create(ctx context.Context, ownerUserID uuid.UUID, input CreateAlbumInput) (*types.Album, error)
	Get(ctx context.Context, callerID, albumID uuid.UUID, withAssets bool) (*types.Album, error)
	GetOwned(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Album, error)
	Update(ctx context.Context, callerID, albumID uuid.UUID, input UpdateAlbumInput) (*types.Album, error)
	Delete(ctx context.Context, callerID, albumID uuid.UUID) error
	AddAssets(ctx context.Context, callerID, albumID uuid.UUID, assetIDs []uuid.UUID) error
	RemoveAssets(ctx context.Context, callerID, albumID uuid.UUID, assetIDs []uuid.UUID) error
	AddPeople(ctx context.Context, callerID, albumID uuid.UUID, personIDs []uuid.UUID, together bool) (*types.Album, error)
}

type albumService struct {
	log        *logger.Logger
	albumRepo  repos.AlbumRepo
	assetRepo  repos.AssetRepo
	personRepo repos.PersonRepo
}

func NewAlbumService(log *logger.Logger, albumRepo repos.AlbumRepo, assetRepo repos.AssetRepo, personRepo repos.PersonRepo) AlbumService {
	return &albumService{
		log:        log.With("service", "AlbumService"),
		albumRepo:  albumRepo,
		assetRepo:  assetRepo,
		personRepo: personRepo,
	}
}

func (s *albumService) Create(ctx context.Context, ownerUserID uuid.UUID, input CreateAlbumInput) (*types.Album, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: album name is required", types.ErrValidation)
	}
	if err := types.ValidateSmartSearch(input.SmartSearch); err != nil {
		return nil, err
	}

	album := &types.Album{
		OwnerUserID: ownerUserID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		SmartSearch: input.SmartSearch,
	}
	if len(input.AssetIDs) > 0 {
		album.ThumbnailAssetID = &input.AssetIDs[0]
	}

	created, err := s.albumRepo.Create(ctx, nil, album)
	if err != nil {
		return nil, err
	}
	if len(input.AssetIDs) > 0 {
		if err := s.albumRepo.AddAssetIDs(ctx, nil, created.ID, input.AssetIDs); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (s *albumService) Get(ctx context.Context, callerID, albumID uuid.UUID, withAssets bool) (*types.Album, error) {
	return s.findOwned(ctx, callerID, albumID, withAssets)
}

func (s *albumService) GetOwned(ctx context.Context, ownerUserID uuid.UUID) ([]*types.Album, error) {
	return s.albumRepo.GetOwned(ctx, nil, ownerUserID)
}

func (s *albumService) Update(ctx context.Context, callerID, albumID uuid.UUID, input UpdateAlbumInput) (*types.Album, error) {
	album, err := s.findOwned(ctx, callerID, albumID, false)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, fmt.Errorf("%w: album name is required", types.ErrValidation)
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ThumbnailAssetID != nil {
		ok, err := s.albumRepo.HasAsset(ctx, nil, albumID, *input.ThumbnailAssetID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: thumbnail asset is not in the album", types.ErrValidation)
		}
		updates["thumbnail_asset_id"] = *input.ThumbnailAssetID
	}
	if err := s.albumRepo.Update(ctx, nil, album.ID, updates); err != nil {
		return nil, err
	}
	return s.albumRepo.GetByID(ctx, nil, albumID, false)
}

func (s *albumService) Delete(ctx context.Context, callerID, albumID uuid.UUID) error {
	album, err := s.findOwned(ctx, callerID, albumID, false)
	if err != nil {
		return err
	}
	return s.albumRepo.Delete(ctx, nil, album.ID)
}

func (s *albumService) AddAssets(ctx context.Context, callerID, albumID uuid.UUID, assetIDs []uuid.UUID) error {
	album, err := s.findOwned(ctx, callerID, albumID, false)
	if err != nil {
		return err
	}
	if len(assetIDs) == 0 {
		return nil
	}
	if err := s.albumRepo.AddAssetIDs(ctx, nil, album.ID, assetIDs); err != nil {
		return err
	}
	if album.ThumbnailAssetID == nil {
		return s.albumRepo.Update(ctx, nil, album.ID, map[string]interface{}{
			"thumbnail_asset_id": assetIDs[0],
		})
	}
	return nil
}

func (s *albumService) RemoveAssets(ctx context.Context, callerID, albumID uuid.UUID, assetIDs []uuid.UUID) error {
	album, err := s.findOwned(ctx, callerID, albumID, false)
	if err != nil {
		return err
	}
	if err := s.albumRepo.RemoveAssetIDs(ctx, nil, album.ID, assetIDs); err != nil {
		return err
	}
	// A removed thumbnail is replaced by the oldest remaining asset.
	if album.ThumbnailAssetID != nil && containsID(assetIDs, *album.ThumbnailAssetID) {
		first, err := s.assetRepo.GetFirstForAlbum(ctx, nil, album.ID)
		if err != nil {
			return err
		}
		var thumbnail interface{}
		if first != nil {
			thumbnail = first.ID
		}
		return s.albumRepo.Update(ctx, nil, album.ID, map[string]interface{}{
			"thumbnail_asset_id": thumbnail,
		})
	}
	return nil
}

// AddPeople turns the album into a person-filtered smart album: it seeds the
// membership with every asset currently depicting the people, stores the
// person set plus tie-break for future triggers, and renames the album after
// its people.
func (s *albumService) AddPeople(ctx context.Context, callerID, albumID uuid.UUID, personIDs []uuid.UUID, together bool) (*types.Album, error) {
	album, err := s.findOwned(ctx, callerID, albumID, false)
	if err != nil {
		return nil, err
	}
	if len(personIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one person is required", types.ErrValidation)
	}

	persons, err := s.personRepo.GetByIDs(ctx, nil, callerID, personIDs)
	if err != nil {
		return nil, err
	}
	if len(persons) != len(personIDs) {
		return nil, fmt.Errorf("%w: unknown person id", types.ErrValidation)
	}

	assets, err := s.assetRepo.GetAllByPersonIDs(ctx, nil, callerID, personIDs, together)
	if err != nil {
		return nil, err
	}
	assetIDs := make([]uuid.UUID, 0, len(assets))
	for _, asset := range assets {
		assetIDs = append(assetIDs, asset.ID)
	}
	if err := s.albumRepo.AddAssetIDs(ctx, nil, album.ID, assetIDs); err != nil {
		return nil, err
	}
	if err := s.albumRepo.SetPeople(ctx, nil, album.ID, personIDs, together); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(persons))
	for _, p := range persons {
		names = append(names, p.Name)
	}
	updates := map[string]interface{}{
		"name": resolveAlbumName(names, together),
	}
	if album.ThumbnailAssetID == nil && len(assetIDs) > 0 {
		updates["thumbnail_asset_id"] = assetIDs[0]
	}
	if err := s.albumRepo.Update(ctx, nil, album.ID, updates); err != nil {
		return nil, err
	}
	return s.albumRepo.GetByID(ctx, nil, album.ID, false)
}

func (s *albumService) findOwned(ctx context.Context, callerID, albumID uuid.UUID, withAssets bool) (*types.Album, error) {
	album, err := s.albumRepo.GetByID(ctx, nil, albumID, withAssets)
	if err != nil {
		return nil, err
	}
	if album.OwnerUserID != callerID {
		return nil, fmt.Errorf("album %s: %w", albumID, types.ErrNotFound)
	}
	return album, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// resolveAlbumName derives a display name from person names:
// "Alice with Bob", "Alice and Bob", "Alice, Bob and Carol together".
func resolveAlbumName(names []string, together bool) string {
	if len(names) > 2 {
		items := make([]string, len(names))
		copy(items, names)
		last := items[len(items)-1]
		items = items[:len(items)-1]
		suffix := ""
		if together {
			suffix = " together"
		}
		return strings.Join(items, ", ") + fmt.Sprintf(" and %s%s", last, suffix)
	}
	sep := " and "
	if together {
		sep = " with "
	}
	return strings.Join(names, sep)
}
