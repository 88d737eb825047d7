package app

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// Registry owns the open positions keyed by token and the background tasks
// that act on them. All access goes through its synchronized accessors.
type Registry struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
	tasks     errgroup.Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{positions: make(map[string]*domain.Position)}
}

// Open registers a new position.
func (r *Registry) Open(pos domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[pos.TokenID]; ok {
		return fmt.Errorf("%w: %s", ports.ErrPositionExists, pos.TokenID)
	}
	p := pos
	p.Status = domain.StatusOpen
	p.SellInProgress = false
	r.positions[pos.TokenID] = &p
	return nil
}

// Has reports whether a position is tracked for token.
func (r *Registry) Has(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.positions[token]
	return ok
}

// Snapshot returns a copy of the position for token.
func (r *Registry) Snapshot(token string) (domain.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[token]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Update applies fn to the position under the registry lock. Updates are
// refused while a sell is in flight.
func (r *Registry) Update(token string, fn func(*domain.Position) error) (domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[token]
	if !ok {
		return domain.Position{}, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, token)
	}
	if p.SellInProgress {
		return *p, fmt.Errorf("%w: %s", ports.ErrSellInProgress, token)
	}
	working := *p
	if err := fn(&working); err != nil {
		return *p, err
	}
	// Identity, sold percent and the sell guard are owned by the registry.
	working.TokenID = p.TokenID
	working.SoldPercent = p.SoldPercent
	working.SellInProgress = p.SellInProgress
	working.Status = p.Status
	if working.TrailingStopPrice < p.TrailingStopPrice {
		working.TrailingStopPrice, working.TrailingStopROI = p.TrailingStopPrice, p.TrailingStopROI
	}
	*p = working
	return working, nil
}

// BeginSell sets the sell guard. It fails if a sell is already running.
func (r *Registry) BeginSell(token string) (domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[token]
	if !ok {
		return domain.Position{}, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, token)
	}
	if p.SellInProgress {
		return *p, fmt.Errorf("%w: %s", ports.ErrSellInProgress, token)
	}
	p.SellInProgress = true
	p.Status = domain.StatusSelling
	return *p, nil
}

// CompleteSell records soldPct of the original position as sold and clears
// the guard. A fully sold position is closed and retired.
func (r *Registry) CompleteSell(token string, soldPct float64) (domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[token]
	if !ok {
		return domain.Position{}, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, token)
	}
	p.AddSold(soldPct)
	p.SellInProgress = false
	p.Status = domain.StatusOpen
	if p.SoldPercent >= 100 {
		p.Status = domain.StatusClosed
		delete(r.positions, token)
	}
	return *p, nil
}

// AbortSell clears the guard without changing the sold percent.
func (r *Registry) AbortSell(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.positions[token]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrPositionNotFound, token)
	}
	p.SellInProgress = false
	p.Status = domain.StatusOpen
	return nil
}

// Remove retires a position regardless of its state.
func (r *Registry) Remove(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.positions[token]
	delete(r.positions, token)
	return ok
}

// List returns snapshots of all positions ordered by buy time.
func (r *Registry) List() []domain.Position {
	r.mu.Lock()
	out := make([]domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, *p)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].BuyTime.Before(out[j].BuyTime) })
	return out
}

// Count returns the number of tracked positions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.positions)
}

// Go runs fn as a tracked task.
func (r *Registry) Go(fn func() error) {
	r.tasks.Go(fn)
}

// Wait blocks until every tracked task has returned.
func (r *Registry) Wait() error {
	return r.tasks.Wait()
}
