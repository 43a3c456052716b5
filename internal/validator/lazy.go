package validator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Factory builds the underlying validator. ctx belongs to the request that
// triggered construction; background work started by the factory must not be
// bound to it.
type Factory func(ctx context.Context) (Validator, error)

// Lazy defers construction of a Validator until the first Validate call.
//
// The factory runs at most once successfully, even when many requests race
// to initialize it. A failed construction is not remembered: the next call
// tries again. Once built, the validator is read through an atomic pointer
// so the hot path takes no lock.
type Lazy struct {
	factory Factory

	mu sync.Mutex // one-time initialization barrier
	v  atomic.Pointer[Validator]
}

// NewLazy returns a Lazy validator using factory.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Validate builds the validator if needed and delegates to it.
func (l *Lazy) Validate(ctx context.Context, token string, opts Options) error {
	v, err := l.get(ctx)
	if err != nil {
		return fmt.Errorf("initializing validator: %w", err)
	}

	return v.Validate(ctx, token, opts)
}

func (l *Lazy) get(ctx context.Context) (Validator, error) {
	if v := l.v.Load(); v != nil {
		return *v, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v := l.v.Load(); v != nil {
		return *v, nil
	}

	v, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("validator factory returned nil")
	}
	l.v.Store(&v)

	return v, nil
}
