package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agora_go/internal/core/config"
	"agora_go/internal/core/logger"
	"agora_go/internal/model"
	"agora_go/internal/pkg/pool"
	"agora_go/internal/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TopicService topic read path. Topic DTOs are JSON bytes in both tiers;
// BigCache keeps the large hot set off the GC heap.
type TopicService struct {
	repos   repository.Repos
	tracker *ReadTracker
	l1      *pool.BigCache
	l2      *redis.Client
	sf      *singleflight.Group
	config  *config.CacheConfig
}

// TopicDTO topic data transfer object
type TopicDTO struct {
	Tid          int64  `json:"tid"`
	Fid          int    `json:"fid"`
	Uid          int64  `json:"uid"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Sticky       bool   `json:"sticky"`
	Closed       bool   `json:"closed"`
	OnModeration bool   `json:"on_moderation"`
	PostCount    int    `json:"post_count"`
	HeadPid      int64  `json:"head_pid"`
	LastPost     int64  `json:"last_post"`
	Dateline     int64  `json:"dateline"`
	IsUnread     bool   `json:"is_unread,omitempty"`
}

// PostDTO post data transfer object; raw markup only goes out to authors
// and moderators via the edit path, never in listings.
type PostDTO struct {
	Pid          int64  `json:"pid"`
	Tid          int64  `json:"tid"`
	Uid          int64  `json:"uid"`
	Dateline     int64  `json:"dateline"`
	BodyHTML     string `json:"body_html"`
	OnModeration bool   `json:"on_moderation,omitempty"`
}

// NewTopicService creates a TopicService instance
func NewTopicService(repos repository.Repos, tracker *ReadTracker, l2 *redis.Client, cfg *config.CacheConfig) (*TopicService, error) {
	l1, err := pool.NewBigCache(cfg.L1Cap, time.Duration(cfg.L2TTL)*time.Second)
	if err != nil {
		return nil, err
	}
	return &TopicService{
		repos:   repos,
		tracker: tracker,
		l1:      l1,
		l2:      l2,
		sf:      &singleflight.Group{},
		config:  cfg,
	}, nil
}

func topicDTO(t *model.Topic) *TopicDTO {
	return &TopicDTO{
		Tid:          t.Tid,
		Fid:          t.Fid,
		Uid:          t.Uid,
		Name:         t.Name,
		Slug:         t.Slug,
		Sticky:       t.Sticky,
		Closed:       t.Closed,
		OnModeration: t.OnModeration,
		PostCount:    t.PostCount,
		HeadPid:      t.HeadPid,
		LastPost:     t.LastPost,
		Dateline:     t.Dateline,
	}
}

func postDTO(p *model.Post) *PostDTO {
	return &PostDTO{
		Pid:          p.Pid,
		Tid:          p.Tid,
		Uid:          p.Uid,
		Dateline:     p.Dateline,
		BodyHTML:     p.BodyHTML,
		OnModeration: p.OnModeration,
	}
}

// Get returns one topic through L1 -> L2 -> singleflight+DB. The cached
// form carries no per-user state; IsUnread stays zero here.
func (s *TopicService) Get(ctx context.Context, tid int64) (*TopicDTO, error) {
	key := fmt.Sprintf("topic:%d", tid)

	// L1 Cache
	if raw, ok := s.l1.Get(key); ok {
		var dto TopicDTO
		if err := json.Unmarshal(raw, &dto); err == nil {
			return &dto, nil
		}
	}

	// L2 Cache
	ctxL2 := context.Background()
	if s.l2 != nil {
		if raw, err := s.l2.Get(ctxL2, key).Bytes(); err == nil {
			var dto TopicDTO
			if err := json.Unmarshal(raw, &dto); err == nil {
				s.l1.Set(key, raw)
				return &dto, nil
			}
		}
	}

	// SingleFlight + DB
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		t, err := s.repos.Topics.GetByID(ctx, tid)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, nil
		}
		dto := topicDTO(t)
		// Write Cache
		if raw, err := json.Marshal(dto); err == nil {
			s.l1.Set(key, raw)
			if s.l2 != nil {
				s.l2.Set(ctxL2, key, raw, time.Duration(s.config.L2TTL)*time.Second)
			}
		}
		return dto, nil
	})

	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*TopicDTO), nil
}

// GetBySlug resolves a topic from its forum-scoped slug.
func (s *TopicService) GetBySlug(ctx context.Context, fid int, slug string) (*TopicDTO, error) {
	t, err := s.repos.Topics.GetBySlug(ctx, fid, slug)
	if err != nil || t == nil {
		return nil, err
	}
	return s.Get(ctx, t.Tid)
}

// ListByForum returns a page of topics, sticky first then latest
// activity, with per-user unread flags. Topics held on moderation are
// only visible to users who can moderate the forum.
func (s *TopicService) ListByForum(ctx context.Context, user model.Identity, fid int, offset, limit int) ([]*TopicDTO, error) {
	topics, err := s.repos.Topics.ListByForum(ctx, fid, offset, limit)
	if err != nil {
		return nil, err
	}
	canMod := user.CanModerate(fid)
	list := make([]*TopicDTO, 0, len(topics))
	for _, t := range topics {
		if t.OnModeration && !canMod && t.Uid != user.Uid {
			continue
		}
		dto := topicDTO(t)
		unread, err := s.tracker.IsTopicUnread(ctx, user, t)
		if err != nil {
			// unread flags are advisory; the listing survives tracker errors
			logger.Warn("unread check failed",
				logger.Int64("tid", t.Tid), logger.String("error", err.Error()))
		} else {
			dto.IsUnread = unread
		}
		list = append(list, dto)
	}
	return list, nil
}

// Posts returns a page of a topic's posts in posting order. Posts held
// on moderation are filtered the same way topics are.
func (s *TopicService) Posts(ctx context.Context, user model.Identity, tid int64, offset, limit int) ([]*PostDTO, error) {
	topic, err := s.repos.Topics.GetByID(ctx, tid)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, nil
	}
	canMod := user.CanModerate(topic.Fid)
	posts, err := s.repos.Posts.ListByTopic(ctx, tid, offset, limit)
	if err != nil {
		return nil, err
	}
	list := make([]*PostDTO, 0, len(posts))
	for _, p := range posts {
		if p.OnModeration && !canMod && p.Uid != user.Uid {
			continue
		}
		list = append(list, postDTO(p))
	}
	return list, nil
}

// RawBody returns the editable markup of a post, author or moderator
// only.
func (s *TopicService) RawBody(ctx context.Context, user model.Identity, pid int64) (string, error) {
	post, err := s.repos.Posts.GetByID(ctx, pid)
	if err != nil {
		return "", err
	}
	if post == nil {
		return "", nil
	}
	topic, err := s.repos.Topics.GetByID(ctx, post.Tid)
	if err != nil {
		return "", err
	}
	if topic == nil {
		return "", nil
	}
	if post.Uid != user.Uid && !user.CanModerate(topic.Fid) {
		return "", nil
	}
	return post.Body, nil
}

// Invalidate drops a topic from both cache tiers.
func (s *TopicService) Invalidate(tid int64) {
	key := fmt.Sprintf("topic:%d", tid)
	s.l1.Remove(key)
	if s.l2 != nil {
		s.l2.Del(context.Background(), key)
	}
}

// Flush clears the L1 tier.
func (s *TopicService) Flush() error {
	return s.l1.Flush()
}

// Close releases the BigCache.
func (s *TopicService) Close() error {
	return s.l1.Close()
}
