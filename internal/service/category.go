package service

import (
	"context"
	"fmt"

	"agora_go/internal/model"
	"agora_go/internal/pkg/apperr"
	"agora_go/internal/repository"
)

// CategoryService category management. The list is small and warmed at
// startup; reads go straight to the store.
type CategoryService struct {
	atomic repository.Atomic
	repos  repository.Repos
	slugs  SlugAllocator
}

// CategoryDTO category data transfer object
type CategoryDTO struct {
	Cid      int    `json:"cid"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Hidden   bool   `json:"hidden,omitempty"`
	Position int    `json:"position"`
}

// NewCategoryService creates a CategoryService
func NewCategoryService(atomic repository.Atomic, repos repository.Repos, slugs SlugAllocator) *CategoryService {
	return &CategoryService{atomic: atomic, repos: repos, slugs: slugs}
}

func categoryDTO(c *model.Category) *CategoryDTO {
	return &CategoryDTO{
		Cid:      c.Cid,
		Name:     c.Name,
		Slug:     c.Slug,
		Hidden:   c.Hidden,
		Position: c.Position,
	}
}

// List returns categories visible to the user; hidden categories are
// staff-only.
func (s *CategoryService) List(ctx context.Context, user model.Identity) ([]*CategoryDTO, error) {
	cats, err := s.repos.Categories.GetAll(ctx, user.Staff || user.Superuser)
	if err != nil {
		return nil, err
	}
	list := make([]*CategoryDTO, 0, len(cats))
	for _, c := range cats {
		list = append(list, categoryDTO(c))
	}
	return list, nil
}

// Get returns one category, respecting hidden visibility.
func (s *CategoryService) Get(ctx context.Context, user model.Identity, cid int) (*CategoryDTO, error) {
	cat, err := s.repos.Categories.GetByID(ctx, cid)
	if err != nil {
		return nil, err
	}
	if cat == nil || (cat.Hidden && !user.Staff && !user.Superuser) {
		return nil, nil
	}
	return categoryDTO(cat), nil
}

// Create allocates a slug unique across all categories and inserts.
func (s *CategoryService) Create(ctx context.Context, name string, hidden bool, position int) (*CategoryDTO, error) {
	if name == "" {
		return nil, apperr.ErrInvalidParams
	}
	cat := &model.Category{Name: name, Hidden: hidden, Position: position}
	err := s.atomic.Do(ctx, func(r repository.Repos) error {
		_, err := s.slugs.AllocateInsert(ctx, name,
			func(ctx context.Context) ([]string, error) {
				return r.Categories.Slugs(ctx)
			},
			func(ctx context.Context, slug string) error {
				cat.Slug = slug
				cid, err := r.Categories.Create(ctx, cat)
				if err == nil {
					cat.Cid = cid
				}
				return err
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	return categoryDTO(cat), nil
}

// Rename changes the name and re-allocates the slug in the same scope.
func (s *CategoryService) Rename(ctx context.Context, cid int, name string) (*CategoryDTO, error) {
	if name == "" {
		return nil, apperr.ErrInvalidParams
	}
	var cat *model.Category
	err := s.atomic.Do(ctx, func(r repository.Repos) error {
		var err error
		cat, err = r.Categories.GetByID(ctx, cid)
		if err != nil {
			return err
		}
		if cat == nil {
			return fmt.Errorf("category %d: %w", cid, apperr.ErrNotFound)
		}
		cat.Name = name
		_, err = s.slugs.AllocateInsert(ctx, name,
			func(ctx context.Context) ([]string, error) {
				return r.Categories.Slugs(ctx)
			},
			func(ctx context.Context, slug string) error {
				cat.Slug = slug
				return r.Categories.Update(ctx, cat)
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	return categoryDTO(cat), nil
}

// SetHidden flips staff-only visibility.
func (s *CategoryService) SetHidden(ctx context.Context, cid int, hidden bool) error {
	cat, err := s.repos.Categories.GetByID(ctx, cid)
	if err != nil {
		return err
	}
	if cat == nil {
		return fmt.Errorf("category %d: %w", cid, apperr.ErrNotFound)
	}
	cat.Hidden = hidden
	return s.repos.Categories.Update(ctx, cat)
}

// Delete removes a category and everything beneath it: forums, topics,
// posts, polls, trackers and subscriptions, one transaction.
func (s *CategoryService) Delete(ctx context.Context, cid int) error {
	return s.atomic.Do(ctx, func(r repository.Repos) error {
		forums, err := r.Forums.GetByCategory(ctx, cid)
		if err != nil {
			return err
		}
		for _, f := range forums {
			if err := deleteForumCascade(ctx, r, f.Fid); err != nil {
				return err
			}
		}
		return r.Categories.Delete(ctx, cid)
	})
}

// deleteForumCascade tx-scoped removal of a forum and all owned rows.
func deleteForumCascade(ctx context.Context, r repository.Repos, fid int) error {
	topics, err := r.Topics.Summaries(ctx, fid)
	if err != nil {
		return err
	}
	for _, t := range topics {
		if _, err := r.Posts.DeleteByTopic(ctx, t.Tid); err != nil {
			return err
		}
		if err := r.Polls.DeleteByTopic(ctx, t.Tid); err != nil {
			return err
		}
		if err := r.Topics.Delete(ctx, t.Tid); err != nil {
			return err
		}
	}
	if err := r.Trackers.DeleteByForum(ctx, fid); err != nil {
		return err
	}
	if err := r.Subscriptions.DeleteByForum(ctx, fid); err != nil {
		return err
	}
	return r.Forums.Delete(ctx, fid)
}
