package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MatchStrategy string

const (
	// StrategySemantic ranks assets by embedding similarity to the free-text
	// query. Selected iff the specification carries a non-empty query.
	StrategySemantic MatchStrategy = "semantic"
	// StrategyStructured filters assets on explicit metadata, newest first.
	StrategyStructured MatchStrategy = "structured"
)

const (
	DefaultPage               = 1
	DefaultSemanticPageSize   = 100
	DefaultStructuredPageSize = 250
	MaxPageSize               = 1000
)

// PersonFilter restricts matches to assets depicting the listed people.
// Together=true requires all of them on the asset, false requires at least one.
type PersonFilter struct {
	IDs      []uuid.UUID
	Together bool
}

func (f PersonFilter) Empty() bool { return len(f.IDs) == 0 }

// Matches applies the together/any tie-break against a set of person ids
// found on a single asset.
func (f PersonFilter) Matches(assetPeople map[uuid.UUID]struct{}) bool {
	if f.Empty() {
		return false
	}
	if f.Together {
		for _, id := range f.IDs {
			if _, ok := assetPeople[id]; !ok {
				return false
			}
		}
		return true
	}
	for _, id := range f.IDs {
		if _, ok := assetPeople[id]; ok {
			return true
		}
	}
	return false
}

type Pagination struct {
	Page int
	Size int
}

// SearchSpec is the evaluation-time read model of a stored specification.
// The strategy is decided once, when the spec is read, instead of
// re-interpreting a flat bag of optional columns at every use site. Filters
// of the inactive strategy are ignored, never merged.
type SearchSpec struct {
	Strategy MatchStrategy
	Query    string
	Persons  PersonFilter

	// Filters backs the structured strategy only; nil for semantic.
	Filters *AlbumSmartSearch

	Page Pagination
}

// NewSearchSpec builds the tagged read model from a persisted row. Returns a
// zero spec and false when the row is nil or empty (a plain, manually curated
// album).
func NewSearchSpec(raw *AlbumSmartSearch, peopleTogether bool) (SearchSpec, bool) {
	if raw.Empty() {
		return SearchSpec{}, false
	}
	persons := PersonFilter{Together: peopleTogether}
	for _, p := range raw.People {
		if p.ID != uuid.Nil {
			persons.IDs = append(persons.IDs, p.ID)
		}
	}

	query := strings.TrimSpace(raw.Query)
	spec := SearchSpec{Query: query, Persons: persons}
	if query != "" {
		spec.Strategy = StrategySemantic
		spec.Page = pagination(raw, DefaultSemanticPageSize)
		return spec, true
	}

	spec.Strategy = StrategyStructured
	spec.Filters = raw
	spec.Page = pagination(raw, DefaultStructuredPageSize)
	return spec, true
}

func pagination(raw *AlbumSmartSearch, defaultSize int) Pagination {
	p := Pagination{Page: DefaultPage, Size: defaultSize}
	if raw.Page != nil && *raw.Page > 0 {
		p.Page = *raw.Page
	}
	if raw.Size != nil && *raw.Size > 0 {
		p.Size = *raw.Size
	}
	return p
}

// ValidateSmartSearch checks a specification at album create/update time.
// Evaluation assumes a previously validated row and never re-validates.
func ValidateSmartSearch(raw *AlbumSmartSearch) error {
	if raw == nil {
		return nil
	}
	if raw.Empty() {
		return fmt.Errorf("%w: specification needs a query, people, or at least one filter", ErrValidation)
	}
	if raw.Page != nil && *raw.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrValidation)
	}
	if raw.Size != nil && (*raw.Size < 1 || *raw.Size > MaxPageSize) {
		return fmt.Errorf("%w: size must be between 1 and %d", ErrValidation, MaxPageSize)
	}
	datePairs := []struct {
		name          string
		before, after *time.Time
	}{
		{"created", raw.CreatedBefore, raw.CreatedAfter},
		{"updated", raw.UpdatedBefore, raw.UpdatedAfter},
		{"trashed", raw.TrashedBefore, raw.TrashedAfter},
		{"taken", raw.TakenBefore, raw.TakenAfter},
	}
	for _, pair := range datePairs {
		if pair.before != nil && pair.after != nil && pair.before.Before(*pair.after) {
			return fmt.Errorf("%w: %sBefore is earlier than %sAfter", ErrValidation, pair.name, pair.name)
		}
	}
	if (raw.TrashedBefore != nil || raw.TrashedAfter != nil) &&
		(raw.WithDeleted == nil || !*raw.WithDeleted) {
		return fmt.Errorf("%w: trashed date filters require withDeleted", ErrValidation)
	}
	return nil
}
