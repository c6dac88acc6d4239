package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/platform/machinelearning"
	"github.com/diegobr89/immich/internal/search"
	"github.com/diegobr89/immich/internal/types"
)

// ---- fakes ----

type fakeWaiter struct {
	err   error
	calls int
}

func (f *fakeWaiter) WaitForQueueCompletion(ctx context.Context, queues ...types.QueueName) error {
	f.calls++
	return f.err
}

type fakeAssetRepo struct {
	assets map[uuid.UUID]*types.Asset
}

func (f *fakeAssetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Asset, error) {
	asset, ok := f.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, types.ErrNotFound)
	}
	return asset, nil
}

func (f *fakeAssetRepo) GetAllByPersonIDs(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, personIDs []uuid.UUID, together bool) ([]*types.Asset, error) {
	return nil, nil
}

func (f *fakeAssetRepo) GetFirstForAlbum(ctx context.Context, tx *gorm.DB, albumID uuid.UUID) (*types.Asset, error) {
	return nil, nil
}

type fakeAlbumRepo struct {
	mu      sync.Mutex
	albums  []*types.Album
	members map[uuid.UUID][]uuid.UUID
	thumbs  map[uuid.UUID]uuid.UUID
	adds    int
}

func newFakeAlbumRepo(albums ...*types.Album) *fakeAlbumRepo {
	return &fakeAlbumRepo{
		albums:  albums,
		members: map[uuid.UUID][]uuid.UUID{},
		thumbs:  map[uuid.UUID]uuid.UUID{},
	}
}

func (f *fakeAlbumRepo) Create(ctx context.Context, tx *gorm.DB, album *types.Album) (*types.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if album.ID == uuid.Nil {
		album.ID = uuid.New()
	}
	f.albums = append(f.albums, album)
	return album, nil
}

func (f *fakeAlbumRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID, withAssets bool) (*types.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, album := range f.albums {
		if album.ID == id {
			return album, nil
		}
	}
	return nil, fmt.Errorf("album %s: %w", id, types.ErrNotFound)
}

func (f *fakeAlbumRepo) GetOwned(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Album
	for _, album := range f.albums {
		if album.OwnerUserID == ownerUserID {
			out = append(out, album)
		}
	}
	return out, nil
}

func (f *fakeAlbumRepo) GetSmartAlbumsOwnedBy(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID) ([]*types.Album, error) {
	owned, _ := f.GetOwned(ctx, tx, ownerUserID)
	var out []*types.Album
	for _, album := range owned {
		if album.IsSmart() {
			out = append(out, album)
		}
	}
	return out, nil
}

func (f *fakeAlbumRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if thumb, ok := updates["thumbnail_asset_id"]; ok {
		if assetID, ok := thumb.(uuid.UUID); ok {
			f.thumbs[id] = assetID
		}
	}
	return nil
}

func (f *fakeAlbumRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error { return nil }

func (f *fakeAlbumRepo) GetAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.members[albumID]...), nil
}

func (f *fakeAlbumRepo) HasAsset(ctx context.Context, tx *gorm.DB, albumID, assetID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.members[albumID] {
		if id == assetID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAlbumRepo) AddAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, assetIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	for _, assetID := range assetIDs {
		exists := false
		for _, id := range f.members[albumID] {
			if id == assetID {
				exists = true
				break
			}
		}
		if !exists {
			f.members[albumID] = append(f.members[albumID], assetID)
		}
	}
	return nil
}

func (f *fakeAlbumRepo) RemoveAssetIDs(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, assetIDs []uuid.UUID) error {
	return nil
}

func (f *fakeAlbumRepo) SetPeople(ctx context.Context, tx *gorm.DB, albumID uuid.UUID, personIDs []uuid.UUID, together bool) error {
	return nil
}

type fakeSearch struct {
	mu           sync.Mutex
	smartResult  []uuid.UUID
	smartErr     error
	metaResult   []uuid.UUID
	metaErr      error
	smartCalls   int
	metaCalls    int
	lastSmart    search.SmartSearchOptions
	lastMetadata search.MetadataSearchOptions
}

func (f *fakeSearch) SearchSmart(ctx context.Context, page types.Pagination, opts search.SmartSearchOptions) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.smartCalls++
	f.lastSmart = opts
	return f.smartResult, f.smartErr
}

func (f *fakeSearch) SearchMetadata(ctx context.Context, page types.Pagination, opts search.MetadataSearchOptions) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	f.lastMetadata = opts
	return f.metaResult, f.metaErr
}

type fakeEncoder struct {
	mu        sync.Mutex
	embedding []float32
	err       error
	calls     int
}

func (f *fakeEncoder) EncodeText(ctx context.Context, text string, model machinelearning.CLIPConfig) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

type fakeConfig struct {
	smartSearch bool
}

func (f *fakeConfig) RequireFeature(feature Feature) error {
	if feature == FeatureSmartSearch && !f.smartSearch {
		return fmt.Errorf("%w: smart search is disabled on this instance", types.ErrFeatureDisabled)
	}
	return nil
}

func (f *fakeConfig) CLIP() machinelearning.CLIPConfig {
	return machinelearning.CLIPConfig{ModelName: "ViT-B-32__openai", Dimension: 3}
}

func (f *fakeConfig) EvalConcurrency() int { return 2 }

type fakeLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (f *fakeLocker) Lock(ctx context.Context, albumID uuid.UUID) (func(), error) {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = map[uuid.UUID]*sync.Mutex{}
	}
	lock, ok := f.locks[albumID]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[albumID] = lock
	}
	f.mu.Unlock()
	lock.Lock()
	return lock.Unlock, nil
}

// ---- fixtures ----

type engineFixture struct {
	svc       SmartAlbumService
	waiter    *fakeWaiter
	assetRepo *fakeAssetRepo
	albumRepo *fakeAlbumRepo
	search    *fakeSearch
	encoder   *fakeEncoder
	config    *fakeConfig
}

func newEngineFixture(t *testing.T, albumRepo *fakeAlbumRepo, assets ...*types.Asset) *engineFixture {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	assetMap := map[uuid.UUID]*types.Asset{}
	for _, asset := range assets {
		assetMap[asset.ID] = asset
	}
	fx := &engineFixture{
		waiter:    &fakeWaiter{},
		assetRepo: &fakeAssetRepo{assets: assetMap},
		albumRepo: albumRepo,
		search:    &fakeSearch{},
		encoder:   &fakeEncoder{embedding: []float32{0.1, 0.2, 0.3}},
		config:    &fakeConfig{smartSearch: true},
	}
	fx.svc = NewSmartAlbumService(log, fx.waiter, fx.assetRepo, fx.albumRepo, fx.search, fx.encoder, fx.config, &fakeLocker{})
	return fx
}

func smartAlbum(owner uuid.UUID, query string, personIDs ...uuid.UUID) *types.Album {
	ss := &types.AlbumSmartSearch{ID: uuid.New(), Query: query}
	for _, id := range personIDs {
		ss.People = append(ss.People, types.Person{ID: id})
	}
	return &types.Album{ID: uuid.New(), OwnerUserID: owner, Name: "smart", SmartSearch: ss}
}

func assetWithFaces(owner uuid.UUID, personIDs ...uuid.UUID) *types.Asset {
	asset := &types.Asset{ID: uuid.New(), OwnerUserID: owner, Type: types.AssetTypeImage}
	for _, id := range personIDs {
		personID := id
		asset.Faces = append(asset.Faces, types.AssetFace{AssetID: asset.ID, PersonID: &personID})
	}
	return asset
}

func memberSet(t *testing.T, repo *fakeAlbumRepo, albumID uuid.UUID) map[uuid.UUID]bool {
	t.Helper()
	ids, _ := repo.GetAssetIDs(context.Background(), nil, albumID)
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// ---- tests ----

func TestHandleAssetMatchSkipsMissingAsset(t *testing.T) {
	fx := newEngineFixture(t, newFakeAlbumRepo())
	status, err := fx.svc.HandleAssetMatch(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("HandleAssetMatch: %v", err)
	}
	if status != types.JobStatusSkipped {
		t.Fatalf("status=%s, want skipped", status)
	}
	if fx.waiter.calls != 1 {
		t.Fatalf("barrier not awaited")
	}
}

func TestHandleAssetMatchFailsWhenBarrierUnavailable(t *testing.T) {
	fx := newEngineFixture(t, newFakeAlbumRepo())
	fx.waiter.err = fmt.Errorf("%w: redis down", types.ErrInfrastructure)
	status, err := fx.svc.HandleAssetMatch(context.Background(), uuid.New())
	if status != types.JobStatusFailed {
		t.Fatalf("status=%s, want failed", status)
	}
	if !errors.Is(err, types.ErrInfrastructure) {
		t.Fatalf("expected ErrInfrastructure, got %v", err)
	}
}

// End-to-end scenario: one semantic album and one person-filtered metadata
// album both pick up the freshly ingested asset; a duplicate trigger adds
// nothing twice.
func TestHandleAssetMatchTwoAlbumScenario(t *testing.T) {
	owner := uuid.New()
	p1 := uuid.New()
	asset := assetWithFaces(owner, p1)

	album1 := smartAlbum(owner, "sunset beach")
	album2 := smartAlbum(owner, "", p1)
	repo := newFakeAlbumRepo(album1, album2)

	fx := newEngineFixture(t, repo, asset)
	fx.search.smartResult = []uuid.UUID{asset.ID}
	fx.search.metaResult = []uuid.UUID{asset.ID}

	status, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID)
	if err != nil || status != types.JobStatusSuccess {
		t.Fatalf("HandleAssetMatch: status=%s err=%v", status, err)
	}

	if !memberSet(t, repo, album1.ID)[asset.ID] {
		t.Fatalf("semantic album did not receive the asset")
	}
	if !memberSet(t, repo, album2.ID)[asset.ID] {
		t.Fatalf("metadata album did not receive the asset")
	}
	if fx.encoder.calls != 1 {
		t.Fatalf("encoder calls=%d, want 1", fx.encoder.calls)
	}
	if got := fx.search.lastMetadata.Persons; len(got.IDs) != 1 || got.IDs[0] != p1 {
		t.Fatalf("metadata search missing person filter: %+v", got)
	}

	// Duplicate trigger: membership unchanged.
	if _, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if n := len(memberSet(t, repo, album1.ID)); n != 1 {
		t.Fatalf("album1 membership=%d after duplicate trigger, want 1", n)
	}
	if n := len(memberSet(t, repo, album2.ID)); n != 1 {
		t.Fatalf("album2 membership=%d after duplicate trigger, want 1", n)
	}
}

// Reconciliation never removes: assets that stopped matching stay put.
func TestReconciliationIsAdditiveOnly(t *testing.T) {
	owner := uuid.New()
	asset := assetWithFaces(owner)
	album := smartAlbum(owner, "mountains")
	repo := newFakeAlbumRepo(album)

	manual := uuid.New()
	repo.members[album.ID] = []uuid.UUID{manual}

	fx := newEngineFixture(t, repo, asset)
	fx.search.smartResult = []uuid.UUID{asset.ID}

	if _, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID); err != nil {
		t.Fatalf("HandleAssetMatch: %v", err)
	}

	members := memberSet(t, repo, album.ID)
	if !members[manual] {
		t.Fatalf("manually curated asset was removed")
	}
	if !members[asset.ID] {
		t.Fatalf("matched asset was not added")
	}
}

// Semantic strategy must ignore structured filters; structured strategy must
// never invoke the encoder.
func TestStrategyExclusivity(t *testing.T) {
	owner := uuid.New()
	asset := assetWithFaces(owner)

	t.Run("semantic_ignores_structured_filters", func(t *testing.T) {
		album := smartAlbum(owner, "city at night")
		favorite := true
		album.SmartSearch.IsFavorite = &favorite
		repo := newFakeAlbumRepo(album)

		fx := newEngineFixture(t, repo, asset)
		if _, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID); err != nil {
			t.Fatalf("HandleAssetMatch: %v", err)
		}
		if fx.search.smartCalls != 1 || fx.search.metaCalls != 0 {
			t.Fatalf("smart=%d meta=%d, want 1/0", fx.search.smartCalls, fx.search.metaCalls)
		}
	})

	t.Run("structured_never_calls_encoder", func(t *testing.T) {
		album := smartAlbum(owner, "")
		favorite := true
		album.SmartSearch.IsFavorite = &favorite
		repo := newFakeAlbumRepo(album)

		fx := newEngineFixture(t, repo, asset)
		if _, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID); err != nil {
			t.Fatalf("HandleAssetMatch: %v", err)
		}
		if fx.encoder.calls != 0 {
			t.Fatalf("encoder calls=%d, want 0", fx.encoder.calls)
		}
		if fx.search.metaCalls != 1 {
			t.Fatalf("meta calls=%d, want 1", fx.search.metaCalls)
		}
	})
}

// Disabled smart search blocks the semantic path before the encoder, while
// structured siblings in the same run still commit.
func TestFeatureFlagGating(t *testing.T) {
	owner := uuid.New()
	p1 := uuid.New()
	asset := assetWithFaces(owner, p1)

	semantic := smartAlbum(owner, "snow")
	structured := smartAlbum(owner, "", p1)
	repo := newFakeAlbumRepo(semantic, structured)

	fx := newEngineFixture(t, repo, asset)
	fx.config.smartSearch = false
	fx.search.metaResult = []uuid.UUID{asset.ID}

	status, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID)
	if err != nil || status != types.JobStatusSuccess {
		t.Fatalf("HandleAssetMatch: status=%s err=%v", status, err)
	}
	if fx.encoder.calls != 0 {
		t.Fatalf("encoder must not be called when smart search is disabled, calls=%d", fx.encoder.calls)
	}
	if len(memberSet(t, repo, semantic.ID)) != 0 {
		t.Fatalf("semantic album must not update while the feature is off")
	}
	if !memberSet(t, repo, structured.ID)[asset.ID] {
		t.Fatalf("structured album must still commit")
	}
}

// One album failing must not abort its siblings.
func TestPerAlbumFailureIsolation(t *testing.T) {
	owner := uuid.New()
	p1 := uuid.New()
	asset := assetWithFaces(owner, p1)

	broken := smartAlbum(owner, "lighthouse")
	healthy := smartAlbum(owner, "", p1)
	repo := newFakeAlbumRepo(broken, healthy)

	fx := newEngineFixture(t, repo, asset)
	fx.search.smartErr = fmt.Errorf("%w: search backend down", types.ErrInfrastructure)
	fx.search.metaResult = []uuid.UUID{asset.ID}

	status, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID)
	if err != nil || status != types.JobStatusSuccess {
		t.Fatalf("HandleAssetMatch: status=%s err=%v", status, err)
	}
	if !memberSet(t, repo, healthy.ID)[asset.ID] {
		t.Fatalf("healthy album membership not committed")
	}
	if len(memberSet(t, repo, broken.ID)) != 0 {
		t.Fatalf("broken album should have no members")
	}
}

// A run in which no album could be evaluated at all reports failure, so the
// job system's retry policy sees it. Partial failures stay a success.
func TestRunFailsWhenEveryAlbumHitsInfrastructure(t *testing.T) {
	owner := uuid.New()
	asset := assetWithFaces(owner)

	album1 := smartAlbum(owner, "sunset")
	album2 := smartAlbum(owner, "harbor")
	repo := newFakeAlbumRepo(album1, album2)

	fx := newEngineFixture(t, repo, asset)
	fx.search.smartErr = fmt.Errorf("%w: search backend down", types.ErrInfrastructure)

	status, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID)
	if status != types.JobStatusFailed {
		t.Fatalf("status=%s, want %s", status, types.JobStatusFailed)
	}
	if !errors.Is(err, types.ErrInfrastructure) {
		t.Fatalf("expected ErrInfrastructure, got %v", err)
	}
}

// Person fast-path albums match against the triggering asset's faces.
func TestPersonFastPath(t *testing.T) {
	owner := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()
	p3 := uuid.New()
	asset := assetWithFaces(owner, p1, p2)

	cases := []struct {
		name      string
		people    []uuid.UUID
		together  bool
		wantMatch bool
	}{
		{"together_all_present", []uuid.UUID{p1, p2}, true, true},
		{"together_missing_person", []uuid.UUID{p1, p3}, true, false},
		{"any_one_present", []uuid.UUID{p1, p3}, false, true},
		{"any_none_present", []uuid.UUID{p3}, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			album := &types.Album{
				ID:             uuid.New(),
				OwnerUserID:    owner,
				Name:           "people",
				PeopleTogether: tc.together,
			}
			for _, id := range tc.people {
				album.People = append(album.People, types.Person{ID: id})
			}
			repo := newFakeAlbumRepo(album)
			fx := newEngineFixture(t, repo, asset)

			if _, err := fx.svc.HandleAssetMatch(context.Background(), asset.ID); err != nil {
				t.Fatalf("HandleAssetMatch: %v", err)
			}
			got := memberSet(t, repo, album.ID)[asset.ID]
			if got != tc.wantMatch {
				t.Fatalf("match=%v, want %v", got, tc.wantMatch)
			}
			if fx.search.smartCalls+fx.search.metaCalls != 0 {
				t.Fatalf("fast path must not hit the search backend")
			}
		})
	}
}

func TestDifferencePreservesOrderAndDedupes(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	got := difference([]uuid.UUID{a, b, a, c}, []uuid.UUID{b})
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("difference=%v, want [%s %s]", got, a, c)
	}
}
