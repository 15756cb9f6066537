package service

import (
	"context"
	"fmt"

	"agora_go/internal/core/logger"
	"agora_go/internal/pkg/apperr"
	"agora_go/internal/repository"

	"github.com/gosimple/slug"
)

// DefaultSlugAttempts probe limit when none is configured
const DefaultSlugAttempts = 100

// SlugAllocator allocates collision-free URL slugs inside a uniqueness
// scope (categories globally, forums per category, topics per forum).
// Allocation is deterministic: the same name against the same taken set
// always yields the same slug.
type SlugAllocator struct {
	MaxAttempts int
}

// NewSlugAllocator creates a SlugAllocator
func NewSlugAllocator(maxAttempts int) SlugAllocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultSlugAttempts
	}
	return SlugAllocator{MaxAttempts: maxAttempts}
}

// Allocate normalizes name and probes base, base-2 ... base-N against the
// taken set. Returns apperr.ErrSlugExhausted when every candidate collides.
func (a SlugAllocator) Allocate(name string, taken map[string]bool) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "untitled"
	}

	if !taken[base] {
		return base, nil
	}
	for i := 2; i <= a.MaxAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrSlugExhausted, base)
}

// AllocateInsert runs the full race-safe allocation protocol: query the
// taken set, allocate, insert. A prior read cannot be trusted under
// concurrent creation, so a unique-key violation on insert triggers exactly
// one re-query and re-allocation; a second violation fails the operation.
func (a SlugAllocator) AllocateInsert(
	ctx context.Context,
	name string,
	taken func(ctx context.Context) ([]string, error),
	insert func(ctx context.Context, slug string) error,
) (string, error) {
	for attempt := 0; ; attempt++ {
		existing, err := taken(ctx)
		if err != nil {
			return "", err
		}
		set := make(map[string]bool, len(existing))
		for _, s := range existing {
			set[s] = true
		}

		candidate, err := a.Allocate(name, set)
		if err != nil {
			return "", err
		}

		err = insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !repository.IsDuplicateKey(err) || attempt >= 1 {
			return "", err
		}
		logger.Warn("slug collision on insert, reallocating",
			logger.String("slug", candidate))
	}
}
