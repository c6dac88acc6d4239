package search

import (
	"github.com/diegobr89/immich/internal/types"
)

// Condition is one SQL predicate with its bind args. Keeping filter
// translation as plain data lets it be tested without a database.
type Condition struct {
	Expr string
	Args []interface{}
}

// MetadataConditions translates the structured half of a search specification
// into SQL predicates over the asset and asset_exif tables.
//
// Archived and trashed assets are excluded by default; withArchived /
// withDeleted widen the result, an explicit isArchived pins it.
func MetadataConditions(f *types.AlbumSmartSearch) []Condition {
	out := make([]Condition, 0, 16)
	add := func(expr string, args ...interface{}) {
		out = append(out, Condition{Expr: expr, Args: args})
	}

	withDeleted := f != nil && f.WithDeleted != nil && *f.WithDeleted
	if !withDeleted {
		add("asset.deleted_at IS NULL")
		add("asset.trashed_at IS NULL")
	}

	if f == nil {
		add("asset.is_archived = ?", false)
		add("asset.is_visible = ?", true)
		return out
	}

	switch {
	case f.IsArchived != nil:
		add("asset.is_archived = ?", *f.IsArchived)
	case f.WithArchived != nil && *f.WithArchived:
		// no archived predicate: archived and unarchived both match
	default:
		add("asset.is_archived = ?", false)
	}

	if f.IsVisible != nil {
		add("asset.is_visible = ?", *f.IsVisible)
	} else {
		add("asset.is_visible = ?", true)
	}

	boolFilters := []struct {
		col string
		val *bool
	}{
		{"asset.is_favorite", f.IsFavorite},
		{"asset.is_motion", f.IsMotion},
		{"asset.is_offline", f.IsOffline},
		{"asset.is_external", f.IsExternal},
		{"asset.is_encoded", f.IsEncoded},
		{"asset.is_read_only", f.IsReadOnly},
	}
	for _, bf := range boolFilters {
		if bf.val != nil {
			add(bf.col+" = ?", *bf.val)
		}
	}

	if f.Type != nil {
		add("asset.type = ?", string(*f.Type))
	}
	if f.LibraryID != nil {
		add("asset.library_id = ?", *f.LibraryID)
	}
	if f.DeviceID != nil {
		add("asset.device_id = ?", *f.DeviceID)
	}

	dateFilters := []struct {
		expr string
		val  interface{}
		set  bool
	}{
		{"asset.created_at < ?", deref(f.CreatedBefore), f.CreatedBefore != nil},
		{"asset.created_at > ?", deref(f.CreatedAfter), f.CreatedAfter != nil},
		{"asset.updated_at < ?", deref(f.UpdatedBefore), f.UpdatedBefore != nil},
		{"asset.updated_at > ?", deref(f.UpdatedAfter), f.UpdatedAfter != nil},
		{"asset.trashed_at < ?", deref(f.TrashedBefore), f.TrashedBefore != nil},
		{"asset.trashed_at > ?", deref(f.TrashedAfter), f.TrashedAfter != nil},
		{"asset.taken_at < ?", deref(f.TakenBefore), f.TakenBefore != nil},
		{"asset.taken_at > ?", deref(f.TakenAfter), f.TakenAfter != nil},
	}
	for _, df := range dateFilters {
		if df.set {
			add(df.expr, df.val)
		}
	}

	exifFilters := []struct {
		col string
		val *string
	}{
		{"city", f.City},
		{"state", f.State},
		{"country", f.Country},
		{"make", f.Make},
		{"model", f.Model},
		{"lens_model", f.LensModel},
	}
	for _, ef := range exifFilters {
		if ef.val != nil {
			add("asset.id IN (SELECT asset_id FROM asset_exif WHERE "+ef.col+" = ?)", *ef.val)
		}
	}
	if f.WithExif != nil && *f.WithExif {
		add("asset.id IN (SELECT asset_id FROM asset_exif)")
	}

	if f.IsNotInAlbum != nil && *f.IsNotInAlbum {
		add("asset.id NOT IN (SELECT asset_id FROM albums_assets)")
	}

	return out
}

func deref[T any](p *T) interface{} {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
