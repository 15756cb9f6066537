package service

import (
	"context"
	"fmt"
	"time"

	"agora_go/internal/core/logger"
	"agora_go/internal/core/snowflake"
	"agora_go/internal/model"
	"agora_go/internal/pkg/apperr"
	"agora_go/internal/repository"
)

// TopicState lifecycle state of a topic. Sticky is an orthogonal display
// flag, not a state.
type TopicState int

const (
	StateOpen TopicState = iota
	StateClosed
	StateOnModeration
	StateDeleted
)

func (s TopicState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateOnModeration:
		return "on_moderation"
	case StateDeleted:
		return "deleted"
	}
	return "unknown"
}

// StateOf derives the lifecycle state from topic flags
func StateOf(t *model.Topic) TopicState {
	switch {
	case t.OnModeration:
		return StateOnModeration
	case t.Closed:
		return StateClosed
	default:
		return StateOpen
	}
}

// Hooks typed extension points fired after a lifecycle operation commits.
// External collaborators register implementations instead of patching
// behavior into the engine.
type Hooks interface {
	OnTopicCreated(ctx context.Context, topic *model.Topic, head *model.Post)
	OnPostCreated(ctx context.Context, topic *model.Topic, post *model.Post)
	OnPostDeleted(ctx context.Context, post *model.Post, topicDeleted bool)
	OnTopicStateChanged(ctx context.Context, topic *model.Topic, from, to TopicState)
}

// CacheInvalidator lets the engine drop advisory cache entries after
// writes; the relational store stays the single source of truth.
type CacheInvalidator interface {
	InvalidateTopic(tid int64)
	InvalidateForum(fid int)
}

// PollSpec optional poll attached at topic creation
type PollSpec struct {
	Type     int
	Question string
	Answers  []string
}

// Lifecycle governs topic state transitions, post creation and the delete
// cascades, invoking the counter and read-tracking engines inside the same
// transaction as the row mutations.
type Lifecycle struct {
	atomic   repository.Atomic
	repos    repository.Repos
	counters *CounterEngine
	renderer Renderer
	slugs    SlugAllocator
	premod   bool
	hooks    []Hooks
	caches   CacheInvalidator
}

// NewLifecycle creates a Lifecycle engine
func NewLifecycle(atomic repository.Atomic, repos repository.Repos, counters *CounterEngine, renderer Renderer, slugs SlugAllocator, premod bool) *Lifecycle {
	return &Lifecycle{
		atomic:   atomic,
		repos:    repos,
		counters: counters,
		renderer: renderer,
		slugs:    slugs,
		premod:   premod,
	}
}

// RegisterHooks adds a hook set; fired in registration order.
func (l *Lifecycle) RegisterHooks(h Hooks) {
	l.hooks = append(l.hooks, h)
}

// SetCacheInvalidator wires the advisory cache layer
func (l *Lifecycle) SetCacheInvalidator(ci CacheInvalidator) {
	l.caches = ci
}

// needsModeration pre-moderation applies unless the author holds a bypass
// privilege for the forum.
func (l *Lifecycle) needsModeration(user model.Identity, fid int) bool {
	return l.premod && !user.CanModerate(fid)
}

// CreateTopic creates a topic with its head post, allocating a slug unique
// within the forum, applying counters and marking the author's own read
// state — all in one transaction. A topic never persists without a post.
func (l *Lifecycle) CreateTopic(ctx context.Context, user model.Identity, fid int, name, body string, poll *PollSpec) (*model.Topic, error) {
	if user.Anonymous() {
		return nil, apperr.ErrUnauthorized
	}
	if name == "" || body == "" {
		return nil, apperr.ErrInvalidParams
	}

	now := time.Now().Unix()
	onMod := l.needsModeration(user, fid)
	bodyHTML, bodyText := l.renderer.Render(body)

	topic := &model.Topic{
		Tid:          snowflake.Generate(),
		Fid:          fid,
		Uid:          user.Uid,
		Name:         name,
		OnModeration: onMod,
		HeadPid:      snowflake.Generate(),
		Dateline:     now,
	}
	head := &model.Post{
		Pid:          topic.HeadPid,
		Tid:          topic.Tid,
		Uid:          user.Uid,
		Dateline:     now,
		Body:         body,
		BodyHTML:     bodyHTML,
		BodyText:     bodyText,
		OnModeration: onMod,
	}

	err := l.atomic.Do(ctx, func(r repository.Repos) error {
		forum, err := r.Forums.GetByID(ctx, fid)
		if err != nil {
			return err
		}
		if forum == nil {
			return fmt.Errorf("forum %d: %w", fid, apperr.ErrNotFound)
		}

		_, err = l.slugs.AllocateInsert(ctx, name,
			func(ctx context.Context) ([]string, error) {
				return r.Topics.SlugsInForum(ctx, fid)
			},
			func(ctx context.Context, slug string) error {
				topic.Slug = slug
				return r.Topics.Create(ctx, topic)
			})
		if err != nil {
			return err
		}

		if err := r.Posts.Create(ctx, head); err != nil {
			return err
		}
		if err := l.counters.OnPostCreated(ctx, r, head, true); err != nil {
			return err
		}
		if poll != nil && poll.Type != model.PollNone {
			if err := createPoll(ctx, r, topic.Tid, poll); err != nil {
				return err
			}
		}
		// The author has read their own post.
		return markTopicRead(ctx, r, user.Uid, topic, now)
	})
	if err != nil {
		return nil, err
	}

	topic.PostCount = 1
	topic.LastPost = now
	l.invalidateForum(fid)
	for _, h := range l.hooks {
		h.OnTopicCreated(ctx, topic, head)
	}
	return topic, nil
}

func createPoll(ctx context.Context, r repository.Repos, tid int64, spec *PollSpec) error {
	if spec.Type != model.PollSingleChoice && spec.Type != model.PollMultipleChoice {
		return apperr.ErrPollChoice
	}
	if len(spec.Answers) < 2 {
		return apperr.ErrInvalidParams
	}
	answers := make([]*model.PollAnswer, 0, len(spec.Answers))
	for _, text := range spec.Answers {
		answers = append(answers, &model.PollAnswer{
			Aid:  snowflake.Generate(),
			Tid:  tid,
			Text: text,
		})
	}
	return r.Polls.CreatePoll(ctx, &model.Poll{Tid: tid, Type: spec.Type, Question: spec.Question}, answers)
}

// CreateReply appends a post to an existing topic.
func (l *Lifecycle) CreateReply(ctx context.Context, user model.Identity, tid int64, body string) (*model.Post, error) {
	if user.Anonymous() {
		return nil, apperr.ErrUnauthorized
	}
	if body == "" {
		return nil, apperr.ErrInvalidParams
	}

	now := time.Now().Unix()
	bodyHTML, bodyText := l.renderer.Render(body)
	post := &model.Post{
		Pid:      snowflake.Generate(),
		Uid:      user.Uid,
		Dateline: now,
		Body:     body,
		BodyHTML: bodyHTML,
		BodyText: bodyText,
	}

	var topic *model.Topic
	err := l.atomic.Do(ctx, func(r repository.Repos) error {
		var err error
		topic, err = r.Topics.GetByID(ctx, tid)
		if err != nil {
			return err
		}
		if topic == nil {
			return fmt.Errorf("topic %d: %w", tid, apperr.ErrNotFound)
		}
		if topic.Closed && !user.CanModerate(topic.Fid) {
			return apperr.ErrTopicClosed
		}

		post.Tid = tid
		post.OnModeration = l.needsModeration(user, topic.Fid)
		if err := r.Posts.Create(ctx, post); err != nil {
			return err
		}
		if err := l.counters.OnPostCreated(ctx, r, post, false); err != nil {
			return err
		}
		return markTopicRead(ctx, r, user.Uid, topic, now)
	})
	if err != nil {
		return nil, err
	}

	l.invalidateTopic(tid)
	l.invalidateForum(topic.Fid)
	for _, h := range l.hooks {
		h.OnPostCreated(ctx, topic, post)
	}
	return post, nil
}

// EditPost replaces a post's raw body; both derived forms are recomputed
// together, never independently.
func (l *Lifecycle) EditPost(ctx context.Context, user model.Identity, pid int64, body string) error {
	if body == "" {
		return apperr.ErrInvalidParams
	}
	post, err := l.repos.Posts.GetByID(ctx, pid)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %d: %w", pid, apperr.ErrNotFound)
	}
	topic, err := l.repos.Topics.GetByID(ctx, post.Tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("topic %d: %w", post.Tid, apperr.ErrNotFound)
	}
	if post.Uid != user.Uid && !user.CanModerate(topic.Fid) {
		return apperr.ErrForbidden
	}

	bodyHTML, bodyText := l.renderer.Render(body)
	if err := l.repos.Posts.UpdateBody(ctx, pid, body, bodyHTML, bodyText); err != nil {
		return err
	}
	l.invalidateTopic(post.Tid)
	return nil
}

// DeletePost removes a post. Deleting a topic's head post is defined as
// deleting the topic: all posts, poll rows and read trackers cascade away
// and counters are decremented for every removed row, in one transaction.
func (l *Lifecycle) DeletePost(ctx context.Context, user model.Identity, pid int64) error {
	var post *model.Post
	var topic *model.Topic
	var topicDeleted bool

	// The post and topic are read inside the transaction: a concurrent
	// delete of the same row must surface as not-found here, not as a
	// second decrement against already-adjusted counters.
	err := l.atomic.Do(ctx, func(r repository.Repos) error {
		var err error
		post, err = r.Posts.GetByID(ctx, pid)
		if err != nil {
			return err
		}
		if post == nil {
			return fmt.Errorf("post %d: %w", pid, apperr.ErrNotFound)
		}
		topic, err = r.Topics.GetForUpdate(ctx, post.Tid)
		if err != nil {
			return err
		}
		if topic == nil {
			return fmt.Errorf("topic %d: %w", post.Tid, apperr.ErrNotFound)
		}
		if post.Uid != user.Uid && !user.CanModerate(topic.Fid) {
			return apperr.ErrForbidden
		}

		topicDeleted = topic.HeadPid == pid
		if topicDeleted {
			return deleteTopicCascade(ctx, r, l.counters, topic)
		}
		if err := r.Posts.Delete(ctx, pid); err != nil {
			return err
		}
		return l.counters.OnPostDeleted(ctx, r, post)
	})
	if err != nil {
		return err
	}

	l.invalidateTopic(topic.Tid)
	l.invalidateForum(topic.Fid)
	for _, h := range l.hooks {
		h.OnPostDeleted(ctx, post, topicDeleted)
	}
	return nil
}

// deleteTopicCascade tx-scoped full topic removal with counter decrements.
func deleteTopicCascade(ctx context.Context, r repository.Repos, counters *CounterEngine, topic *model.Topic) error {
	removed, err := r.Posts.DeleteByTopic(ctx, topic.Tid)
	if err != nil {
		return err
	}
	if err := r.Polls.DeleteByTopic(ctx, topic.Tid); err != nil {
		return err
	}
	if err := r.Trackers.DeleteByTopic(ctx, topic.Tid); err != nil {
		return err
	}
	if err := r.Topics.Delete(ctx, topic.Tid); err != nil {
		return err
	}
	return counters.OnTopicDeleted(ctx, r, topic.Fid, removed)
}

// transition validates and applies a lifecycle state change. Disallowed
// transitions are reported as a warning no-op, not a failure.
func (l *Lifecycle) transition(ctx context.Context, user model.Identity, tid int64, from, to TopicState) error {
	topic, err := l.repos.Topics.GetByID(ctx, tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("topic %d: %w", tid, apperr.ErrNotFound)
	}
	if !user.CanModerate(topic.Fid) {
		return apperr.ErrForbidden
	}

	current := StateOf(topic)
	if current != from {
		logger.Warn("ignored topic state transition",
			logger.Int64("tid", tid),
			logger.String("current", current.String()),
			logger.String("requested", to.String()))
		return fmt.Errorf("topic is %s, not %s: %w", current, from, apperr.ErrInvalidTopicState)
	}

	closed := to == StateClosed
	onMod := to == StateOnModeration
	if err := l.repos.Topics.SetState(ctx, tid, topic.Sticky, closed, onMod); err != nil {
		return err
	}
	if from == StateOnModeration && to == StateOpen {
		// Approval also releases the held posts.
		if err := l.repos.Posts.SetModerationByTopic(ctx, tid, false); err != nil {
			return err
		}
	}

	l.invalidateTopic(tid)
	l.invalidateForum(topic.Fid)
	for _, h := range l.hooks {
		h.OnTopicStateChanged(ctx, topic, from, to)
	}
	return nil
}

// Close open → closed
func (l *Lifecycle) Close(ctx context.Context, user model.Identity, tid int64) error {
	return l.transition(ctx, user, tid, StateOpen, StateClosed)
}

// Reopen closed → open
func (l *Lifecycle) Reopen(ctx context.Context, user model.Identity, tid int64) error {
	return l.transition(ctx, user, tid, StateClosed, StateOpen)
}

// Approve on_moderation → open
func (l *Lifecycle) Approve(ctx context.Context, user model.Identity, tid int64) error {
	return l.transition(ctx, user, tid, StateOnModeration, StateOpen)
}

// ApprovePost releases a single held reply. Approving a post that is not
// held is reported as a warning no-op, like an invalid topic transition.
func (l *Lifecycle) ApprovePost(ctx context.Context, user model.Identity, pid int64) error {
	post, err := l.repos.Posts.GetByID(ctx, pid)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %d: %w", pid, apperr.ErrNotFound)
	}
	topic, err := l.repos.Topics.GetByID(ctx, post.Tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("topic %d: %w", post.Tid, apperr.ErrNotFound)
	}
	if !user.CanModerate(topic.Fid) {
		return apperr.ErrForbidden
	}
	if !post.OnModeration {
		return fmt.Errorf("post %d is not held: %w", pid, apperr.ErrInvalidTopicState)
	}

	if err := l.repos.Posts.SetModeration(ctx, pid, false); err != nil {
		return err
	}
	post.OnModeration = false

	l.invalidateTopic(topic.Tid)
	// Subscribers first hear about the reply when it leaves the queue.
	for _, h := range l.hooks {
		h.OnPostCreated(ctx, topic, post)
	}
	return nil
}

// Reject on_moderation → deleted; cascades like a head-post deletion.
func (l *Lifecycle) Reject(ctx context.Context, user model.Identity, tid int64) error {
	topic, err := l.repos.Topics.GetByID(ctx, tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("topic %d: %w", tid, apperr.ErrNotFound)
	}
	if !user.CanModerate(topic.Fid) {
		return apperr.ErrForbidden
	}
	if StateOf(topic) != StateOnModeration {
		logger.Warn("ignored topic rejection",
			logger.Int64("tid", tid),
			logger.String("current", StateOf(topic).String()))
		return fmt.Errorf("topic is %s: %w", StateOf(topic), apperr.ErrInvalidTopicState)
	}

	if err := l.atomic.Do(ctx, func(r repository.Repos) error {
		return deleteTopicCascade(ctx, r, l.counters, topic)
	}); err != nil {
		return err
	}

	l.invalidateTopic(tid)
	l.invalidateForum(topic.Fid)
	for _, h := range l.hooks {
		h.OnTopicStateChanged(ctx, topic, StateOnModeration, StateDeleted)
	}
	return nil
}

// SetSticky flips the display flag; allowed in any state.
func (l *Lifecycle) SetSticky(ctx context.Context, user model.Identity, tid int64, sticky bool) error {
	topic, err := l.repos.Topics.GetByID(ctx, tid)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("topic %d: %w", tid, apperr.ErrNotFound)
	}
	if !user.CanModerate(topic.Fid) {
		return apperr.ErrForbidden
	}
	if err := l.repos.Topics.SetState(ctx, tid, sticky, topic.Closed, topic.OnModeration); err != nil {
		return err
	}
	l.invalidateTopic(tid)
	return nil
}

// DeleteZeroPostTopics removes topics holding no posts, repairing the
// invariant that a topic never persists without its head. Operator entry
// point, paired with RecomputeAll.
func (l *Lifecycle) DeleteZeroPostTopics(ctx context.Context) (int, error) {
	var deleted int
	err := l.atomic.Do(ctx, func(r repository.Repos) error {
		topics, err := r.Topics.ZeroPostTopics(ctx)
		if err != nil {
			return err
		}
		for _, t := range topics {
			if err := r.Polls.DeleteByTopic(ctx, t.Tid); err != nil {
				return err
			}
			if err := r.Trackers.DeleteByTopic(ctx, t.Tid); err != nil {
				return err
			}
			if err := r.Topics.Delete(ctx, t.Tid); err != nil {
				return err
			}
			// No posts to subtract, but the topic itself counts.
			if err := l.counters.OnTopicDeleted(ctx, r, t.Fid, 0); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Info("zero-post topics purged", logger.Int("count", deleted))
	}
	return deleted, nil
}

// ModerationQueue returns topics awaiting review, filtered to forums the
// user may moderate.
func (l *Lifecycle) ModerationQueue(ctx context.Context, user model.Identity, offset, limit int) ([]*model.Topic, error) {
	topics, err := l.repos.Topics.ListOnModeration(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	out := topics[:0]
	for _, t := range topics {
		if user.CanModerate(t.Fid) {
			out = append(out, t)
		}
	}
	return out, nil
}

// GrantModerator makes a user moderator of the given forums.
func (l *Lifecycle) GrantModerator(ctx context.Context, uid int64, fids ...int) error {
	for _, fid := range fids {
		if err := l.repos.Forums.AddModerator(ctx, fid, uid); err != nil {
			return err
		}
	}
	logger.Info("moderator granted",
		logger.Int64("uid", uid),
		logger.Int("forums", len(fids)))
	return nil
}

func (l *Lifecycle) invalidateTopic(tid int64) {
	if l.caches != nil {
		l.caches.InvalidateTopic(tid)
	}
}

func (l *Lifecycle) invalidateForum(fid int) {
	if l.caches != nil {
		l.caches.InvalidateForum(fid)
	}
}
