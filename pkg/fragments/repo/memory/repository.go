package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/simple-fragments/pkg/fragments"
)

// Repository implements fragments.Repository using in-memory storage
type Repository struct {
	mu sync.RWMutex
	// owner_id -> id -> fragment
	byOwner map[string]map[string]*fragments.Fragment
}

// New creates a new in-memory repository
func New() fragments.Repository {
	return &Repository{
		byOwner: make(map[string]map[string]*fragments.Fragment),
	}
}

func (r *Repository) WriteFragment(ctx context.Context, fragment *fragments.Fragment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned, ok := r.byOwner[fragment.OwnerID]
	if !ok {
		owned = make(map[string]*fragments.Fragment)
		r.byOwner[fragment.OwnerID] = owned
	}

	// Create a copy to avoid external modifications
	fragmentCopy := *fragment
	owned[fragment.ID] = &fragmentCopy
	return nil
}

func (r *Repository) ReadFragment(ctx context.Context, ownerID, id string) (*fragments.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fragment, exists := r.byOwner[ownerID][id]
	if !exists {
		return nil, fragments.ErrNotFound
	}

	// Return a copy to prevent external modifications
	fragmentCopy := *fragment
	return &fragmentCopy, nil
}

func (r *Repository) ListFragments(ctx context.Context, ownerID string) ([]*fragments.Fragment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := r.byOwner[ownerID]
	result := make([]*fragments.Fragment, 0, len(owned))
	for _, fragment := range owned {
		fragmentCopy := *fragment
		result = append(result, &fragmentCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Created.Equal(result[j].Created) {
			return result[i].ID < result[j].ID
		}
		return result[i].Created.Before(result[j].Created)
	})
	return result, nil
}

func (r *Repository) DeleteFragment(ctx context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.byOwner[ownerID]
	if _, exists := owned[id]; !exists {
		return fragments.ErrNotFound
	}

	delete(owned, id)
	if len(owned) == 0 {
		delete(r.byOwner, ownerID)
	}
	return nil
}
