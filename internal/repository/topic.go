package repository

import (
	"context"
	"database/sql"

	"agora_go/internal/model"
)

// TopicRepository Topic data access interface
type TopicRepository interface {
	GetByID(ctx context.Context, tid int64) (*model.Topic, error)
	GetBySlug(ctx context.Context, fid int, slug string) (*model.Topic, error)
	// GetForUpdate locks the topic row for the enclosing transaction.
	GetForUpdate(ctx context.Context, tid int64) (*model.Topic, error)
	ListByForum(ctx context.Context, fid int, offset, limit int) ([]*model.Topic, error)
	Summaries(ctx context.Context, fid int) ([]*model.TopicSummary, error)
	ListOnModeration(ctx context.Context, offset, limit int) ([]*model.Topic, error)
	ZeroPostTopics(ctx context.Context) ([]*model.TopicSummary, error)
	SlugsInForum(ctx context.Context, fid int) ([]string, error)
	Create(ctx context.Context, topic *model.Topic) error
	Update(ctx context.Context, topic *model.Topic) error
	SetState(ctx context.Context, tid int64, sticky, closed, onModeration bool) error
	UpdateCounters(ctx context.Context, tid int64, postCount int, lastPost int64) error
	Delete(ctx context.Context, tid int64) error
	CountPosts(ctx context.Context, tid int64) (int, error)
	MaxPostTime(ctx context.Context, tid int64) (int64, error)
}

type topicRepository struct {
	db Queryer
}

// NewTopicRepository creates a TopicRepository
func NewTopicRepository(db Queryer) TopicRepository {
	return &topicRepository{db: db}
}

const topicCols = "tid, fid, uid, name, slug, sticky, closed, on_moderation, post_count, head_pid, last_post, dateline"

func (r *topicRepository) GetByID(ctx context.Context, tid int64) (*model.Topic, error) {
	var topic model.Topic
	err := r.db.GetContext(ctx, &topic, "SELECT "+topicCols+" FROM topic WHERE tid = ?", tid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepository) GetBySlug(ctx context.Context, fid int, slug string) (*model.Topic, error) {
	var topic model.Topic
	err := r.db.GetContext(ctx, &topic, "SELECT "+topicCols+" FROM topic WHERE fid = ? AND slug = ?", fid, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepository) GetForUpdate(ctx context.Context, tid int64) (*model.Topic, error) {
	var topic model.Topic
	err := r.db.GetContext(ctx, &topic, "SELECT "+topicCols+" FROM topic WHERE tid = ? FOR UPDATE", tid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepository) ListByForum(ctx context.Context, fid int, offset, limit int) ([]*model.Topic, error) {
	var topics []*model.Topic
	err := r.db.SelectContext(ctx, &topics,
		"SELECT "+topicCols+" FROM topic WHERE fid = ? ORDER BY sticky DESC, last_post DESC LIMIT ?, ?",
		fid, offset, limit)
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// Summaries returns tid/last_post pairs for every topic in a forum,
// the working set for read-tracker compaction.
func (r *topicRepository) Summaries(ctx context.Context, fid int) ([]*model.TopicSummary, error) {
	var topics []*model.TopicSummary
	err := r.db.SelectContext(ctx, &topics,
		"SELECT tid, fid, last_post FROM topic WHERE fid = ?", fid)
	if err != nil {
		return nil, err
	}
	return topics, nil
}

func (r *topicRepository) ListOnModeration(ctx context.Context, offset, limit int) ([]*model.Topic, error) {
	var topics []*model.Topic
	err := r.db.SelectContext(ctx, &topics,
		"SELECT "+topicCols+" FROM topic WHERE on_moderation = 1 ORDER BY dateline ASC LIMIT ?, ?",
		offset, limit)
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// ZeroPostTopics returns topics that hold no posts. Such rows violate the
// engine invariant and only appear after interrupted imports.
func (r *topicRepository) ZeroPostTopics(ctx context.Context) ([]*model.TopicSummary, error) {
	var topics []*model.TopicSummary
	err := r.db.SelectContext(ctx, &topics,
		"SELECT t.tid, t.fid, t.last_post FROM topic t LEFT JOIN post p ON p.tid = t.tid WHERE p.pid IS NULL")
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// SlugsInForum returns every taken topic slug in a forum, the allocation
// scope for new topics.
func (r *topicRepository) SlugsInForum(ctx context.Context, fid int) ([]string, error) {
	var slugs []string
	if err := r.db.SelectContext(ctx, &slugs, "SELECT slug FROM topic WHERE fid = ?", fid); err != nil {
		return nil, err
	}
	return slugs, nil
}

func (r *topicRepository) Create(ctx context.Context, topic *model.Topic) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO topic (tid, fid, uid, name, slug, sticky, closed, on_moderation, post_count, head_pid, last_post, dateline) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		topic.Tid, topic.Fid, topic.Uid, topic.Name, topic.Slug, topic.Sticky, topic.Closed,
		topic.OnModeration, topic.PostCount, topic.HeadPid, topic.LastPost, topic.Dateline)
	return err
}

func (r *topicRepository) Update(ctx context.Context, topic *model.Topic) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE topic SET name = ?, slug = ?, sticky = ?, closed = ?, on_moderation = ? WHERE tid = ?",
		topic.Name, topic.Slug, topic.Sticky, topic.Closed, topic.OnModeration, topic.Tid)
	return err
}

func (r *topicRepository) SetState(ctx context.Context, tid int64, sticky, closed, onModeration bool) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE topic SET sticky = ?, closed = ?, on_moderation = ? WHERE tid = ?",
		sticky, closed, onModeration, tid)
	return err
}

func (r *topicRepository) UpdateCounters(ctx context.Context, tid int64, postCount int, lastPost int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE topic SET post_count = ?, last_post = ? WHERE tid = ?",
		postCount, lastPost, tid)
	return err
}

func (r *topicRepository) Delete(ctx context.Context, tid int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM topic WHERE tid = ?", tid)
	return err
}

func (r *topicRepository) CountPosts(ctx context.Context, tid int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM post WHERE tid = ?", tid)
	return count, err
}

func (r *topicRepository) MaxPostTime(ctx context.Context, tid int64) (int64, error) {
	var ts int64
	err := r.db.GetContext(ctx, &ts, "SELECT COALESCE(MAX(dateline), 0) FROM post WHERE tid = ?", tid)
	return ts, err
}
