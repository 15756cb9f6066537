package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agora_go/internal/core/config"
	"agora_go/internal/core/logger"
	"agora_go/internal/model"
	"agora_go/internal/pkg/apperr"
	"agora_go/internal/pkg/pool"
	"agora_go/internal/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ForumService forum business service
type ForumService struct {
	atomic repository.Atomic
	repos  repository.Repos
	slugs  SlugAllocator
	l1     *pool.SimpleCache[int, *ForumDTO] // L1 cache
	l2     *redis.Client
	sf     *singleflight.Group
	config *config.CacheConfig
}

// ForumDTO forum data transfer object
type ForumDTO struct {
	Fid        int    `json:"fid"`
	Cid        int    `json:"cid"`
	Parent     int    `json:"parent"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	TopicCount int    `json:"topic_count"`
	PostCount  int    `json:"post_count"`
	Updated    int64  `json:"updated"`
	Position   int    `json:"position"`
}

// ForumTreeNode forum tree node
type ForumTreeNode struct {
	ForumDTO
	IsUnread bool             `json:"is_unread,omitempty"`
	Children []*ForumTreeNode `json:"children,omitempty"`
}

// NewForumService creates a ForumService instance
func NewForumService(atomic repository.Atomic, repos repository.Repos, slugs SlugAllocator, l2 *redis.Client, cfg *config.CacheConfig) *ForumService {
	return &ForumService{
		atomic: atomic,
		repos:  repos,
		slugs:  slugs,
		l1:     pool.NewSimpleCache[int, *ForumDTO](),
		l2:     l2,
		sf:     &singleflight.Group{},
		config: cfg,
	}
}

func forumDTO(f *model.Forum) *ForumDTO {
	return &ForumDTO{
		Fid:        f.Fid,
		Cid:        f.Cid,
		Parent:     f.Parent,
		Name:       f.Name,
		Slug:       f.Slug,
		TopicCount: f.TopicCount,
		PostCount:  f.PostCount,
		Updated:    f.Updated,
		Position:   f.Position,
	}
}

// Get returns one forum through L1 -> L2 -> singleflight+DB.
func (s *ForumService) Get(ctx context.Context, fid int) (*ForumDTO, error) {
	key := fmt.Sprintf("forum:%d", fid)

	// L1 Cache
	if v, ok := s.l1.Get(fid); ok {
		return v, nil
	}

	// L2 Cache
	ctxL2 := context.Background()
	if s.l2 != nil {
		if raw, err := s.l2.Get(ctxL2, key).Bytes(); err == nil {
			var dto ForumDTO
			if err := json.Unmarshal(raw, &dto); err == nil {
				s.l1.Set(fid, &dto)
				return &dto, nil
			}
		}
	}

	// SingleFlight + DB
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		f, err := s.repos.Forums.GetByID(ctx, fid)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, nil
		}
		dto := forumDTO(f)
		// Write Cache
		if s.l2 != nil {
			if raw, err := json.Marshal(dto); err == nil {
				s.l2.Set(ctxL2, key, raw, time.Duration(s.config.L2TTL)*time.Second)
			}
		}
		s.l1.Set(fid, dto)
		return dto, nil
	})

	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*ForumDTO), nil
}

// GetBySlug resolves a forum from its category-scoped slug.
func (s *ForumService) GetBySlug(ctx context.Context, cid int, slug string) (*ForumDTO, error) {
	f, err := s.repos.Forums.GetBySlug(ctx, cid, slug)
	if err != nil || f == nil {
		return nil, err
	}
	return s.Get(ctx, f.Fid)
}

// GetAll returns all forums, cache bypassed; the flat list feeds the tree.
func (s *ForumService) GetAll(ctx context.Context) ([]*ForumDTO, error) {
	forums, err := s.repos.Forums.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]*ForumDTO, 0, len(forums))
	for _, f := range forums {
		list = append(list, forumDTO(f))
	}
	return list, nil
}

// GetTree builds the forum tree for one category. A node whose parent
// chain never reaches the top level is orphaned and surfaces as a root
// rather than vanishing.
func (s *ForumService) GetTree(ctx context.Context, cid int) ([]*ForumTreeNode, error) {
	forums, err := s.repos.Forums.GetByCategory(ctx, cid)
	if err != nil {
		return nil, err
	}

	nodeMap := make(map[int]*ForumTreeNode)
	nodes := make([]*ForumTreeNode, 0, len(forums))
	for _, f := range forums {
		node := &ForumTreeNode{ForumDTO: *forumDTO(f)}
		nodeMap[f.Fid] = node
		nodes = append(nodes, node)
	}

	var roots []*ForumTreeNode
	for _, node := range nodes {
		if node.Parent > 0 {
			if parent, ok := nodeMap[node.Parent]; ok && parent.Fid != node.Fid {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots, nil
}

// Create allocates a slug unique within the category and inserts.
func (s *ForumService) Create(ctx context.Context, cid int, parent int, name string, position int) (*ForumDTO, error) {
	if name == "" {
		return nil, apperr.ErrInvalidParams
	}
	forum := &model.Forum{Cid: cid, Parent: parent, Name: name, Position: position}
	err := s.atomic.Do(ctx, func(r repository.Repos) error {
		cat, err := r.Categories.GetByID(ctx, cid)
		if err != nil {
			return err
		}
		if cat == nil {
			return fmt.Errorf("category %d: %w", cid, apperr.ErrNotFound)
		}
		if parent > 0 {
			p, err := r.Forums.GetByID(ctx, parent)
			if err != nil {
				return err
			}
			if p == nil || p.Cid != cid {
				return fmt.Errorf("parent forum %d: %w", parent, apperr.ErrNotFound)
			}
		}
		_, err = s.slugs.AllocateInsert(ctx, name,
			func(ctx context.Context) ([]string, error) {
				return r.Forums.SlugsInCategory(ctx, cid)
			},
			func(ctx context.Context, slug string) error {
				forum.Slug = slug
				fid, err := r.Forums.Create(ctx, forum)
				if err == nil {
					forum.Fid = fid
				}
				return err
			})
		return err
	})
	if err != nil {
		logger.Error("create forum failed", logger.String("error", err.Error()))
		return nil, err
	}
	return forumDTO(forum), nil
}

// Rename changes the name and re-allocates the slug within the same
// category.
func (s *ForumService) Rename(ctx context.Context, fid int, name string) (*ForumDTO, error) {
	if name == "" {
		return nil, apperr.ErrInvalidParams
	}
	var forum *model.Forum
	err := s.atomic.Do(ctx, func(r repository.Repos) error {
		var err error
		forum, err = r.Forums.GetByID(ctx, fid)
		if err != nil {
			return err
		}
		if forum == nil {
			return fmt.Errorf("forum %d: %w", fid, apperr.ErrNotFound)
		}
		forum.Name = name
		_, err = s.slugs.AllocateInsert(ctx, name,
			func(ctx context.Context) ([]string, error) {
				return r.Forums.SlugsInCategory(ctx, forum.Cid)
			},
			func(ctx context.Context, slug string) error {
				forum.Slug = slug
				return r.Forums.Update(ctx, forum)
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(fid)
	return forumDTO(forum), nil
}

// Move reparents a forum into another category; the slug is re-allocated
// because uniqueness is scoped to the destination.
func (s *ForumService) Move(ctx context.Context, fid, cid int) error {
	err := s.atomic.Do(ctx, func(r repository.Repos) error {
		forum, err := r.Forums.GetByID(ctx, fid)
		if err != nil {
			return err
		}
		if forum == nil {
			return fmt.Errorf("forum %d: %w", fid, apperr.ErrNotFound)
		}
		cat, err := r.Categories.GetByID(ctx, cid)
		if err != nil {
			return err
		}
		if cat == nil {
			return fmt.Errorf("category %d: %w", cid, apperr.ErrNotFound)
		}
		forum.Cid = cid
		forum.Parent = 0
		_, err = s.slugs.AllocateInsert(ctx, forum.Name,
			func(ctx context.Context) ([]string, error) {
				return r.Forums.SlugsInCategory(ctx, cid)
			},
			func(ctx context.Context, slug string) error {
				forum.Slug = slug
				return r.Forums.Update(ctx, forum)
			})
		return err
	})
	if err != nil {
		return err
	}
	s.Invalidate(fid)
	return nil
}

// Delete removes a forum and everything it owns. Child forums must be
// moved or deleted first.
func (s *ForumService) Delete(ctx context.Context, fid int) error {
	err := s.atomic.Do(ctx, func(r repository.Repos) error {
		forums, err := r.Forums.GetAll(ctx)
		if err != nil {
			return err
		}
		for _, f := range forums {
			if f.Parent == fid {
				return fmt.Errorf("forum %d has child forums: %w", fid, apperr.ErrInvalidParams)
			}
		}
		return deleteForumCascade(ctx, r, fid)
	})
	if err != nil {
		return err
	}
	s.Invalidate(fid)
	return nil
}

// Invalidate drops a forum from both cache tiers.
func (s *ForumService) Invalidate(fid int) {
	s.l1.Remove(fid)
	if s.l2 != nil {
		s.l2.Del(context.Background(), fmt.Sprintf("forum:%d", fid))
	}
}

// Flush clears the L1 tier; L2 entries expire by TTL.
func (s *ForumService) Flush() {
	s.l1.Flush()
}
