package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/types"
)

type fakePersonRepo struct {
	persons map[uuid.UUID]*types.Person
}

func (f *fakePersonRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, ids []uuid.UUID) ([]*types.Person, error) {
	var out []*types.Person
	for _, id := range ids {
		if p, ok := f.persons[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newAlbumService(t *testing.T, albumRepo *fakeAlbumRepo) AlbumService {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewAlbumService(log, albumRepo, &fakeAssetRepo{}, &fakePersonRepo{})
}

func TestResolveAlbumName(t *testing.T) {
	cases := []struct {
		name     string
		names    []string
		together bool
		want     string
	}{
		{"single", []string{"Alice"}, false, "Alice"},
		{"pair", []string{"Alice", "Bob"}, false, "Alice and Bob"},
		{"pair_together", []string{"Alice", "Bob"}, true, "Alice with Bob"},
		{"three", []string{"Alice", "Bob", "Carol"}, false, "Alice, Bob and Carol"},
		{"three_together", []string{"Alice", "Bob", "Carol"}, true, "Alice, Bob and Carol together"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveAlbumName(tc.names, tc.together); got != tc.want {
				t.Fatalf("resolveAlbumName=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestCreateValidatesSmartSearch(t *testing.T) {
	svc := newAlbumService(t, newFakeAlbumRepo())
	owner := uuid.New()

	t.Run("rejects_inverted_date_range", func(t *testing.T) {
		now := time.Now()
		earlier := now.Add(-time.Hour)
		_, err := svc.Create(context.Background(), owner, CreateAlbumInput{
			Name: "bad",
			SmartSearch: &types.AlbumSmartSearch{
				CreatedBefore: &earlier,
				CreatedAfter:  &now,
			},
		})
		if !errors.Is(err, types.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rejects_criteria_less_specification", func(t *testing.T) {
		_, err := svc.Create(context.Background(), owner, CreateAlbumInput{
			Name: "vacuum",
			SmartSearch: &types.AlbumSmartSearch{
				Page: intPtrs(1),
			},
		})
		if !errors.Is(err, types.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rejects_empty_name", func(t *testing.T) {
		_, err := svc.Create(context.Background(), owner, CreateAlbumInput{Name: "   "})
		if !errors.Is(err, types.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("creates_with_valid_spec", func(t *testing.T) {
		album, err := svc.Create(context.Background(), owner, CreateAlbumInput{
			Name:        "Sunsets",
			SmartSearch: &types.AlbumSmartSearch{Query: "sunset"},
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if !album.IsSmart() {
			t.Fatalf("album with a spec should be smart")
		}
	})
}

func TestGetRefusesForeignAlbums(t *testing.T) {
	owner := uuid.New()
	album := &types.Album{ID: uuid.New(), OwnerUserID: owner, Name: "private"}
	svc := newAlbumService(t, newFakeAlbumRepo(album))

	_, err := svc.Get(context.Background(), uuid.New(), album.ID, false)
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("foreign album must look like not-found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), owner, album.ID, false); err != nil {
		t.Fatalf("owner access failed: %v", err)
	}
}

func intPtrs(i int) *int { return &i }
