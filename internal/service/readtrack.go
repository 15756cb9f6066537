package service

import (
	"context"
	"time"

	"agora_go/internal/core/logger"
	"agora_go/internal/model"
	"agora_go/internal/repository"
)

// DefaultMaxTopicTrackers per-user cap on topic read tracker rows
const DefaultMaxTopicTrackers = 5000

// ReadTracker records per-user read state for topics and forums.
//
// Storage stays bounded: once a user has read every topic in a forum, the
// per-topic trackers collapse into one forum tracker; and when a user's
// tracker count exceeds the cap, the oldest trackers are folded into forum
// trackers. Folding uses the max evicted timestamp per forum, so a topic
// once marked read never turns unread again — the trade-off is that unread
// topics older than the fold point coarsen to read.
type ReadTracker struct {
	atomic      repository.Atomic
	repos       repository.Repos
	maxTrackers int
}

// NewReadTracker creates a ReadTracker
func NewReadTracker(atomic repository.Atomic, repos repository.Repos, maxTrackers int) *ReadTracker {
	if maxTrackers <= 0 {
		maxTrackers = DefaultMaxTopicTrackers
	}
	return &ReadTracker{atomic: atomic, repos: repos, maxTrackers: maxTrackers}
}

// MarkTopicRead upserts the user's tracker for a topic, then compacts.
// Anonymous users carry no read state; the call is a no-op.
func (rt *ReadTracker) MarkTopicRead(ctx context.Context, user model.Identity, tid int64) error {
	if user.Anonymous() {
		return nil
	}
	now := time.Now().Unix()
	return rt.atomic.Do(ctx, func(r repository.Repos) error {
		topic, err := r.Topics.GetByID(ctx, tid)
		if err != nil {
			return err
		}
		if topic == nil {
			return nil
		}
		if err := markTopicRead(ctx, r, user.Uid, topic, now); err != nil {
			return err
		}
		if err := rt.compactForum(ctx, r, user.Uid, topic.Fid, now); err != nil {
			return err
		}
		return rt.enforceCap(ctx, r, user.Uid)
	})
}

// markTopicRead tx-scoped upsert used by MarkTopicRead and by the post
// creation path (authors have read their own post). A transient conflict
// between concurrent upserts is retried once, then surfaced.
func markTopicRead(ctx context.Context, r repository.Repos, uid int64, topic *model.Topic, now int64) error {
	err := r.Trackers.UpsertTopic(ctx, uid, topic.Tid, topic.Fid, now)
	if err != nil && repository.IsRetryable(err) {
		logger.Warn("read tracker upsert conflict, retrying",
			logger.Int64("uid", uid),
			logger.Int64("tid", topic.Tid))
		err = r.Trackers.UpsertTopic(ctx, uid, topic.Tid, topic.Fid, now)
	}
	return err
}

// compactForum collapses the user's topic trackers into one forum tracker
// once every topic in the forum is covered.
func (rt *ReadTracker) compactForum(ctx context.Context, r repository.Repos, uid int64, fid int, now int64) error {
	topics, err := r.Topics.Summaries(ctx, fid)
	if err != nil {
		return err
	}
	trackers, err := r.Trackers.TopicTrackersInForum(ctx, uid, fid)
	if err != nil {
		return err
	}
	forumTracker, err := r.Trackers.GetForum(ctx, uid, fid)
	if err != nil {
		return err
	}

	byTid := make(map[int64]int64, len(trackers))
	for _, t := range trackers {
		byTid[t.Tid] = t.LastRead
	}
	var forumRead int64
	if forumTracker != nil {
		forumRead = forumTracker.LastRead
	}

	for _, t := range topics {
		if t.LastPost <= forumRead {
			continue
		}
		if byTid[t.Tid] < t.LastPost {
			return nil // something is still unread, keep fine-grained state
		}
	}

	if err := r.Trackers.DeleteTopicTrackersInForum(ctx, uid, fid); err != nil {
		return err
	}
	return r.Trackers.UpsertForum(ctx, uid, fid, now)
}

// enforceCap folds the oldest trackers into forum trackers when the user
// exceeds the per-user limit. LRU by tracker timestamp.
func (rt *ReadTracker) enforceCap(ctx context.Context, r repository.Repos, uid int64) error {
	count, err := r.Trackers.CountTopicTrackers(ctx, uid)
	if err != nil {
		return err
	}
	if count <= rt.maxTrackers {
		return nil
	}

	evict, err := r.Trackers.OldestTopicTrackers(ctx, uid, count-rt.maxTrackers)
	if err != nil {
		return err
	}

	// Max evicted timestamp per forum: read status survives, precision
	// loss only ever turns unread into read.
	fold := make(map[int]int64)
	for _, t := range evict {
		if t.LastRead > fold[t.Fid] {
			fold[t.Fid] = t.LastRead
		}
	}
	for fid, ts := range fold {
		if err := r.Trackers.UpsertForum(ctx, uid, fid, ts); err != nil {
			return err
		}
	}
	for _, t := range evict {
		if err := r.Trackers.DeleteTopicTracker(ctx, uid, t.Tid); err != nil {
			return err
		}
	}
	logger.Debug("read trackers coarsened",
		logger.Int64("uid", uid),
		logger.Int("evicted", len(evict)))
	return nil
}

// MarkForumRead upserts a forum tracker and drops the topic trackers it
// subsumes.
func (rt *ReadTracker) MarkForumRead(ctx context.Context, user model.Identity, fid int) error {
	if user.Anonymous() {
		return nil
	}
	now := time.Now().Unix()
	return rt.atomic.Do(ctx, func(r repository.Repos) error {
		if err := r.Trackers.UpsertForum(ctx, user.Uid, fid, now); err != nil {
			return err
		}
		return r.Trackers.DeleteTopicTrackersInForum(ctx, user.Uid, fid)
	})
}

// IsTopicUnread reports whether a topic holds content the user has not
// seen. Anonymous users are always unread.
func (rt *ReadTracker) IsTopicUnread(ctx context.Context, user model.Identity, topic *model.Topic) (bool, error) {
	if user.Anonymous() {
		return true, nil
	}
	ft, err := rt.repos.Trackers.GetForum(ctx, user.Uid, topic.Fid)
	if err != nil {
		return false, err
	}
	if ft != nil && ft.LastRead >= topic.LastPost {
		return false, nil
	}
	tt, err := rt.repos.Trackers.GetTopic(ctx, user.Uid, topic.Tid)
	if err != nil {
		return false, err
	}
	if tt != nil && tt.LastRead >= topic.LastPost {
		return false, nil
	}
	return true, nil
}

// IsForumUnread reports whether any topic in the forum is unread for the
// user. The forum tracker against forum.updated is the fast path; otherwise
// every topic must be covered by a tracker.
func (rt *ReadTracker) IsForumUnread(ctx context.Context, user model.Identity, forum *model.Forum) (bool, error) {
	if user.Anonymous() {
		return true, nil
	}
	ft, err := rt.repos.Trackers.GetForum(ctx, user.Uid, forum.Fid)
	if err != nil {
		return false, err
	}
	var forumRead int64
	if ft != nil {
		forumRead = ft.LastRead
	}
	if forumRead >= forum.Updated {
		return false, nil
	}

	topics, err := rt.repos.Topics.Summaries(ctx, forum.Fid)
	if err != nil {
		return false, err
	}
	trackers, err := rt.repos.Trackers.TopicTrackersInForum(ctx, user.Uid, forum.Fid)
	if err != nil {
		return false, err
	}
	byTid := make(map[int64]int64, len(trackers))
	for _, t := range trackers {
		byTid[t.Tid] = t.LastRead
	}
	for _, t := range topics {
		if t.LastPost > forumRead && byTid[t.Tid] < t.LastPost {
			return true, nil
		}
	}
	return false, nil
}
