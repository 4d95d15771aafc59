// Package query serves filtered, paginated views over the listing store.
package query

import (
	"context"
	"fmt"

	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/store"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ListRequest uses the external filter vocabulary. Zero values mean "any".
type ListRequest struct {
	Title    string
	Location string
	Source   string
	Status   string
	Offset   int
	Limit    int
}

// Page is one slice of the ordered listing set. HasMore is a hint derived
// from a full page; Total counts every row matching the filter.
type Page struct {
	Items   []model.JobListing `json:"items"`
	Offset  int                `json:"offset"`
	Limit   int                `json:"limit"`
	HasMore bool               `json:"hasMore"`
	Total   int                `json:"total"`
}

// Store is the part of store.Store the service uses.
type Store interface {
	store.Reader
	UpdateStatus(ctx context.Context, id uint64, status model.Status) (model.JobListing, error)
}

// Service translates list requests into store queries.
type Service struct {
	store    Store
	maxLimit int
}

// NewService returns a Service clamping page sizes to maxLimit (MaxLimit
// when not positive).
func NewService(s Store, maxLimit int) *Service {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	return &Service{store: s, maxLimit: maxLimit}
}

// ListJobs returns the page of listings matching req, ordered by id.
func (s *Service) ListJobs(ctx context.Context, req ListRequest) (Page, error) {
	if req.Offset < 0 {
		return Page{}, &ValidationError{Msg: "offset must be >= 0"}
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = min(DefaultLimit, s.maxLimit)
	case limit > s.maxLimit:
		limit = s.maxLimit
	}

	f := store.Filter{Title: req.Title, Location: req.Location, Source: req.Source}
	if req.Status != "" {
		st, err := model.ParseStatus(req.Status)
		if err != nil {
			return Page{}, &ValidationError{Msg: err.Error()}
		}
		f.Status = st
	}

	items, err := s.store.Query(ctx, f, store.Pagination{Offset: req.Offset, Limit: limit})
	if err != nil {
		return Page{}, fmt.Errorf("list jobs: %w", err)
	}
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("count jobs: %w", err)
	}

	return Page{
		Items:   items,
		Offset:  req.Offset,
		Limit:   limit,
		HasMore: len(items) == limit,
		Total:   total,
	}, nil
}

// GetJob returns one listing or store.ErrNotFound.
func (s *Service) GetJob(ctx context.Context, id uint64) (model.JobListing, error) {
	return s.store.Get(ctx, id)
}

// UpdateStatus sets the consumer-owned status of a listing.
func (s *Service) UpdateStatus(ctx context.Context, id uint64, status string) (model.JobListing, error) {
	st, err := model.ParseStatus(status)
	if err != nil {
		return model.JobListing{}, &ValidationError{Msg: err.Error()}
	}
	return s.store.UpdateStatus(ctx, id, st)
}
