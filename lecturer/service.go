package lecturer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheSize = 256

// ErrInvalidUpdate is returned when an update carries no usable field.
var ErrInvalidUpdate = errors.New("lecturer: invalid update")

// ProfileStore abstracts repository operations for the service.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context, filters Filters) ([]Profile, error)
	Update(ctx context.Context, id string, params UpdateParams) (Profile, error)
}

// Service exposes the lecturer directory. Single profiles are cached; the
// cache entry is dropped whenever HR edits the profile.
type Service struct {
	repo  ProfileStore
	cache *lru.Cache
}

// NewService builds a Service using the provided repository.
func NewService(repo ProfileStore, cacheSize int) *Service {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, _ := lru.New(cacheSize)
	return &Service{repo: repo, cache: cache}
}

// Get returns the lecturer profile for the given identifier.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	if v, ok := s.cache.Get(id); ok {
		return v.(Profile), nil
	}
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	s.cache.Add(id, profile)
	return profile, nil
}

func (s *Service) List(ctx context.Context, filters Filters) ([]Profile, error) {
	return s.repo.List(ctx, filters)
}

// UpdateDetails lets HR change department, employee id and the active flag.
func (s *Service) UpdateDetails(ctx context.Context, id string, params UpdateParams) (Profile, error) {
	if params.empty() {
		return Profile{}, fmt.Errorf("%w: nothing to update", ErrInvalidUpdate)
	}
	if params.Department != nil {
		dept := strings.TrimSpace(*params.Department)
		if dept == "" || len(dept) > 100 {
			return Profile{}, fmt.Errorf("%w: department must be 1-100 characters", ErrInvalidUpdate)
		}
		params.Department = &dept
	}
	if params.EmployeeID != nil && len(*params.EmployeeID) > 20 {
		return Profile{}, fmt.Errorf("%w: employee id exceeds 20 characters", ErrInvalidUpdate)
	}

	s.cache.Remove(id)
	profile, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Profile{}, err
	}
	s.cache.Add(id, profile)
	return profile, nil
}
