package service

import (
	"context"
	"fmt"

	"agora_go/internal/core/logger"
	"agora_go/internal/model"
	"agora_go/internal/pkg/apperr"
	"agora_go/internal/repository"
)

// CounterEngine keeps Forum.topic_count, Forum.post_count, Topic.post_count
// and the "updated"/"last post" pointers consistent with actual post rows.
//
// Incremental methods (OnPostCreated, OnPostDeleted, OnTopicDeleted) run
// against transaction-bound repositories so the counter effect commits with
// the row mutation that caused it; readers never observe a post without its
// counter effect. Recompute* methods are the repair path and never trust
// incremental state.
type CounterEngine struct {
	atomic repository.Atomic
}

// NewCounterEngine creates a CounterEngine
func NewCounterEngine(atomic repository.Atomic) *CounterEngine {
	return &CounterEngine{atomic: atomic}
}

// OnPostCreated applies counter increments for a freshly inserted post.
// Must run in the same transaction as the post insert. newTopic marks the
// head post of a new topic, which also bumps Forum.topic_count.
func (e *CounterEngine) OnPostCreated(ctx context.Context, r repository.Repos, post *model.Post, newTopic bool) error {
	topic, err := r.Topics.GetForUpdate(ctx, post.Tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("counter: topic %d: %w", post.Tid, apperr.ErrNotFound)
	}

	lastPost := topic.LastPost
	if post.Dateline > lastPost {
		lastPost = post.Dateline
	}
	if err := r.Topics.UpdateCounters(ctx, topic.Tid, topic.PostCount+1, lastPost); err != nil {
		return err
	}

	forum, err := r.Forums.GetForUpdate(ctx, topic.Fid)
	if err != nil {
		return err
	}
	if forum == nil {
		return fmt.Errorf("counter: forum %d: %w", topic.Fid, apperr.ErrNotFound)
	}

	topicCount := forum.TopicCount
	if newTopic {
		topicCount++
	}
	updated := forum.Updated
	if post.Dateline > updated {
		updated = post.Dateline
	}
	return r.Forums.UpdateCounters(ctx, forum.Fid, topicCount, forum.PostCount+1, updated)
}

// OnPostDeleted applies counter decrements for a deleted non-head post.
// The last-post pointers are recomputed from the surviving rows.
func (e *CounterEngine) OnPostDeleted(ctx context.Context, r repository.Repos, post *model.Post) error {
	topic, err := r.Topics.GetForUpdate(ctx, post.Tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("counter: topic %d: %w", post.Tid, apperr.ErrNotFound)
	}
	if topic.PostCount < 1 {
		return e.underflow("topic", topic.Tid, topic.PostCount, 1)
	}

	lastPost, err := r.Topics.MaxPostTime(ctx, topic.Tid)
	if err != nil {
		return err
	}
	if err := r.Topics.UpdateCounters(ctx, topic.Tid, topic.PostCount-1, lastPost); err != nil {
		return err
	}

	forum, err := r.Forums.GetForUpdate(ctx, topic.Fid)
	if err != nil {
		return err
	}
	if forum == nil {
		return fmt.Errorf("counter: forum %d: %w", topic.Fid, apperr.ErrNotFound)
	}
	if forum.PostCount < 1 {
		return e.underflow("forum", int64(forum.Fid), forum.PostCount, 1)
	}

	updated, err := r.Forums.MaxPostTime(ctx, forum.Fid)
	if err != nil {
		return err
	}
	return r.Forums.UpdateCounters(ctx, forum.Fid, forum.TopicCount, forum.PostCount-1, updated)
}

// OnTopicDeleted applies forum-level decrements after a whole topic cascade:
// one topic and postsRemoved posts are gone.
func (e *CounterEngine) OnTopicDeleted(ctx context.Context, r repository.Repos, fid int, postsRemoved int) error {
	forum, err := r.Forums.GetForUpdate(ctx, fid)
	if err != nil {
		return err
	}
	if forum == nil {
		return fmt.Errorf("counter: forum %d: %w", fid, apperr.ErrNotFound)
	}
	if forum.TopicCount < 1 {
		return e.underflow("forum topics", int64(fid), forum.TopicCount, 1)
	}
	if forum.PostCount < postsRemoved {
		return e.underflow("forum posts", int64(fid), forum.PostCount, postsRemoved)
	}

	updated, err := r.Forums.MaxPostTime(ctx, fid)
	if err != nil {
		return err
	}
	return r.Forums.UpdateCounters(ctx, fid, forum.TopicCount-1, forum.PostCount-postsRemoved, updated)
}

// RecomputeTopic recalculates one topic's counters from its post rows.
func (e *CounterEngine) RecomputeTopic(ctx context.Context, tid int64) error {
	return e.atomic.Do(ctx, func(r repository.Repos) error {
		return recomputeTopic(ctx, r, tid)
	})
}

func recomputeTopic(ctx context.Context, r repository.Repos, tid int64) error {
	topic, err := r.Topics.GetForUpdate(ctx, tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("recompute: topic %d: %w", tid, apperr.ErrNotFound)
	}
	count, err := r.Topics.CountPosts(ctx, tid)
	if err != nil {
		return err
	}
	lastPost, err := r.Topics.MaxPostTime(ctx, tid)
	if err != nil {
		return err
	}
	return r.Topics.UpdateCounters(ctx, tid, count, lastPost)
}

// RecomputeForum recalculates one forum's counters from source rows.
// Idempotent and independent of any prior incremental state.
func (e *CounterEngine) RecomputeForum(ctx context.Context, fid int) error {
	return e.atomic.Do(ctx, func(r repository.Repos) error {
		return recomputeForum(ctx, r, fid)
	})
}

func recomputeForum(ctx context.Context, r repository.Repos, fid int) error {
	forum, err := r.Forums.GetForUpdate(ctx, fid)
	if err != nil {
		return err
	}
	if forum == nil {
		return fmt.Errorf("recompute: forum %d: %w", fid, apperr.ErrNotFound)
	}
	topics, err := r.Forums.CountTopics(ctx, fid)
	if err != nil {
		return err
	}
	posts, err := r.Forums.CountPosts(ctx, fid)
	if err != nil {
		return err
	}
	updated, err := r.Forums.MaxPostTime(ctx, fid)
	if err != nil {
		return err
	}
	return r.Forums.UpdateCounters(ctx, fid, topics, posts, updated)
}

// RecomputeAll repairs every forum and every topic it contains. This is
// the operator entry point after bulk imports or detected drift.
func (e *CounterEngine) RecomputeAll(ctx context.Context) error {
	return e.atomic.Do(ctx, func(r repository.Repos) error {
		forums, err := r.Forums.GetAll(ctx)
		if err != nil {
			return err
		}
		for _, f := range forums {
			topics, err := r.Topics.Summaries(ctx, f.Fid)
			if err != nil {
				return err
			}
			for _, t := range topics {
				if err := recomputeTopic(ctx, r, t.Tid); err != nil {
					return err
				}
			}
			if err := recomputeForum(ctx, r, f.Fid); err != nil {
				return err
			}
		}
		logger.Info("counters recomputed", logger.Int("forums", len(forums)))
		return nil
	})
}

// underflow logs the invariant violation for operator investigation and
// fails the operation; the enclosing transaction rolls back.
func (e *CounterEngine) underflow(what string, id int64, have, want int) error {
	logger.Error("counter underflow, missed cascade suspected",
		logger.String("counter", what),
		logger.Int64("id", id),
		logger.Int("have", have),
		logger.Int("decrement", want))
	return fmt.Errorf("%s %d: have %d, decrement %d: %w", what, id, have, want, apperr.ErrCounterUnderflow)
}
