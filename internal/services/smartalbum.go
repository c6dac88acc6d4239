package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	redisclients "github.com/diegobr89/immich/internal/clients/redis"
	"github.com/diegobr89/immich/internal/jobs"
	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/platform/machinelearning"
	"github.com/diegobr89/immich/internal/repos"
	"github.com/diegobr89/immich/internal/search"
	"github.com/diegobr89/immich/internal/types"
)

// upstreamQueues are the pipelines whose derived data (faces, people, EXIF,
// sidecars) must be stable before matching produces correct results.
var upstreamQueues = []types.QueueName{
	types.QueueMetadataExtraction,
	types.QueueSidecar,
	types.QueueFaceDetection,
	types.QueueFacialRecognition,
}

// SmartAlbumService re-evaluates smart-album membership when an asset
// finishes ingestion. One call handles one trigger; concurrent triggers are
// safe to interleave because membership writes serialize per album.
type SmartAlbumService interface {
	HandleAssetMatch(ctx context.Context, assetID uuid.UUID) (types.JobStatus, error)
}

type smartAlbumService struct {
	log       *logger.Logger
	waiter    jobs.QueueWaiter
	assetRepo repos.AssetRepo
	albumRepo repos.AlbumRepo
	search    search.SearchService
	ml        machinelearning.Client
	config    SystemConfigProvider
	locker    redisclients.AlbumLocker
}

func NewSmartAlbumService(
	log *logger.Logger,
	waiter jobs.QueueWaiter,
	assetRepo repos.AssetRepo,
	albumRepo repos.AlbumRepo,
	searchService search.SearchService,
	ml machinelearning.Client,
	config SystemConfigProvider,
	locker redisclients.AlbumLocker,
) SmartAlbumService {
	return &smartAlbumService{
		log:       log.With("service", "SmartAlbumService"),
		waiter:    waiter,
		assetRepo: assetRepo,
		albumRepo: albumRepo,
		search:    searchService,
		ml:        ml,
		config:    config,
		locker:    locker,
	}
}

func (s *smartAlbumService) HandleAssetMatch(ctx context.Context, assetID uuid.UUID) (types.JobStatus, error) {
	log := s.log.With("asset_id", assetID)

	if err := s.waiter.WaitForQueueCompletion(ctx, upstreamQueues...); err != nil {
		log.Error("Upstream queue wait failed", "error", err)
		return types.JobStatusFailed, err
	}

	asset, err := s.assetRepo.GetByID(ctx, nil, assetID)
	if errors.Is(err, types.ErrNotFound) {
		// Deleted between enqueue and processing; nothing to evaluate.
		log.Debug("Triggering asset no longer exists, skipping")
		return types.JobStatusSkipped, nil
	}
	if err != nil {
		return types.JobStatusFailed, err
	}

	albums, err := s.albumRepo.GetSmartAlbumsOwnedBy(ctx, nil, asset.OwnerUserID)
	if err != nil {
		return types.JobStatusFailed, err
	}
	if len(albums) == 0 {
		return types.JobStatusSuccess, nil
	}

	// The semantic path is gated once per run: a disabled feature flag or an
	// unreachable encoder stops every semantic-strategy album, while
	// structured albums keep evaluating.
	gate := &semanticGate{config: s.config}

	// Detached from the trigger's cancellation: once evaluation starts, an
	// in-flight membership write finishes atomically instead of being cut
	// mid-transaction by shutdown.
	group, groupCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	group.SetLimit(s.config.EvalConcurrency())

	var failed int
	var infraErr error
	var mu sync.Mutex
	for _, album := range albums {
		album := album
		group.Go(func() error {
			applied, err := s.evaluateAlbum(groupCtx, asset, album, gate)
			if err != nil {
				// Isolated per-album failure; siblings keep going.
				log.Warn("Smart album evaluation failed",
					"album_id", album.ID,
					"error", err,
				)
				mu.Lock()
				failed++
				if infraErr == nil && errors.Is(err, types.ErrInfrastructure) {
					infraErr = err
				}
				mu.Unlock()
				return nil
			}
			if len(applied) > 0 {
				log.Info("Smart album updated",
					"album_id", album.ID,
					"added", len(applied),
				)
			}
			return nil
		})
	}
	_ = group.Wait()

	// When every album failed on infrastructure, nothing was evaluated at
	// all; report failure so the job system's retry policy kicks in. Partial
	// failures stay a success, the next trigger converges the rest.
	if failed == len(albums) && infraErr != nil {
		return types.JobStatusFailed, infraErr
	}

	log.Debug("Smart album matching done", "albums", len(albums), "failed", failed)
	return types.JobStatusSuccess, nil
}

func (s *smartAlbumService) evaluateAlbum(ctx context.Context, asset *types.Asset, album *types.Album, gate *semanticGate) ([]uuid.UUID, error) {
	if album.SmartSearch != nil {
		spec, ok := types.NewSearchSpec(album.SmartSearch, album.PeopleTogether)
		if !ok {
			return nil, nil
		}
		candidates, err := s.matchAlbum(ctx, asset.OwnerUserID, spec, gate)
		if err != nil {
			return nil, err
		}
		return s.reconcile(ctx, album, candidates)
	}

	// Person fast-path: an album defined only by its people matches the
	// triggering asset directly against its recognized faces, no search
	// round-trip.
	if len(album.People) > 0 {
		filter := types.PersonFilter{Together: album.PeopleTogether}
		for _, p := range album.People {
			filter.IDs = append(filter.IDs, p.ID)
		}
		if !filter.Matches(asset.PersonIDSet()) {
			return nil, nil
		}
		return s.reconcile(ctx, album, []uuid.UUID{asset.ID})
	}

	return nil, nil
}

// matchAlbum produces one page of candidate asset ids per the specification's
// strategy. The encoder is never touched on the structured path.
func (s *smartAlbumService) matchAlbum(ctx context.Context, ownerUserID uuid.UUID, spec types.SearchSpec, gate *semanticGate) ([]uuid.UUID, error) {
	switch spec.Strategy {
	case types.StrategySemantic:
		if err := gate.check(); err != nil {
			return nil, err
		}
		embedding, err := s.ml.EncodeText(ctx, spec.Query, s.config.CLIP())
		if err != nil {
			if errors.Is(err, types.ErrInfrastructure) {
				gate.trip(err)
			}
			return nil, err
		}
		return s.search.SearchSmart(ctx, spec.Page, search.SmartSearchOptions{
			OwnerUserID: ownerUserID,
			Embedding:   embedding,
			Persons:     spec.Persons,
		})
	case types.StrategyStructured:
		return s.search.SearchMetadata(ctx, spec.Page, search.MetadataSearchOptions{
			OwnerUserID: ownerUserID,
			Filters:     spec.Filters,
			Persons:     spec.Persons,
		})
	default:
		return nil, fmt.Errorf("%w: unknown match strategy %q", types.ErrValidation, spec.Strategy)
	}
}

// reconcile merges candidates into album membership: additive only, one
// atomic write, serialized per album. Assets already present (including
// manual additions) are never touched or removed.
func (s *smartAlbumService) reconcile(ctx context.Context, album *types.Album, candidates []uuid.UUID) ([]uuid.UUID, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	release, err := s.locker.Lock(ctx, album.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.albumRepo.GetAssetIDs(ctx, nil, album.ID)
	if err != nil {
		return nil, err
	}
	missing := difference(candidates, current)
	if len(missing) == 0 {
		return nil, nil
	}

	if err := s.albumRepo.AddAssetIDs(ctx, nil, album.ID, missing); err != nil {
		return nil, err
	}

	if album.ThumbnailAssetID == nil {
		err := s.albumRepo.Update(ctx, nil, album.ID, map[string]interface{}{
			"thumbnail_asset_id": missing[0],
		})
		if err != nil {
			s.log.Warn("Thumbnail backfill failed", "album_id", album.ID, "error", err)
		}
	}
	return missing, nil
}

// difference returns the candidates not yet present, preserving candidate
// (ranking) order.
func difference(candidates, current []uuid.UUID) []uuid.UUID {
	existing := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		existing[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range candidates {
		if _, ok := existing[id]; ok {
			continue
		}
		// A candidate can appear twice across pages or duplicated triggers.
		existing[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// semanticGate latches the first run-wide semantic failure so later albums in
// the same trigger fail fast instead of re-dialing a dead encoder.
type semanticGate struct {
	config SystemConfigProvider

	mu      sync.Mutex
	tripped error
}

func (g *semanticGate) check() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tripped != nil {
		return g.tripped
	}
	if err := g.config.RequireFeature(FeatureSmartSearch); err != nil {
		g.tripped = err
		return err
	}
	return nil
}

func (g *semanticGate) trip(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tripped == nil {
		g.tripped = err
	}
}
