package repository

import (
	"context"
	"database/sql"

	"agora_go/internal/model"
)

// TrackerRepository read-tracker data access interface.
// All writes are atomic upserts: concurrent markers for the same
// (uid, tid) collapse to one row holding the later timestamp.
type TrackerRepository interface {
	UpsertTopic(ctx context.Context, uid, tid int64, fid int, lastRead int64) error
	UpsertForum(ctx context.Context, uid int64, fid int, lastRead int64) error
	GetTopic(ctx context.Context, uid, tid int64) (*model.TopicReadTracker, error)
	GetForum(ctx context.Context, uid int64, fid int) (*model.ForumReadTracker, error)
	TopicTrackersInForum(ctx context.Context, uid int64, fid int) ([]*model.TopicReadTracker, error)
	CountTopicTrackers(ctx context.Context, uid int64) (int, error)
	// OldestTopicTrackers returns the user's n least recent trackers,
	// the eviction candidates for the per-user cap.
	OldestTopicTrackers(ctx context.Context, uid int64, n int) ([]*model.TopicReadTracker, error)
	DeleteTopicTracker(ctx context.Context, uid, tid int64) error
	DeleteTopicTrackersInForum(ctx context.Context, uid int64, fid int) error
	DeleteByTopic(ctx context.Context, tid int64) error
	DeleteByForum(ctx context.Context, fid int) error
}

type trackerRepository struct {
	db Queryer
}

// NewTrackerRepository creates a TrackerRepository
func NewTrackerRepository(db Queryer) TrackerRepository {
	return &trackerRepository{db: db}
}

// UpsertTopic insert-or-update on (uid, tid). GREATEST keeps the later
// timestamp when two markers race.
func (r *trackerRepository) UpsertTopic(ctx context.Context, uid, tid int64, fid int, lastRead int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO topic_read_tracker (uid, tid, fid, last_read) VALUES (?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE last_read = GREATEST(last_read, VALUES(last_read))",
		uid, tid, fid, lastRead)
	return err
}

func (r *trackerRepository) UpsertForum(ctx context.Context, uid int64, fid int, lastRead int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO forum_read_tracker (uid, fid, last_read) VALUES (?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE last_read = GREATEST(last_read, VALUES(last_read))",
		uid, fid, lastRead)
	return err
}

func (r *trackerRepository) GetTopic(ctx context.Context, uid, tid int64) (*model.TopicReadTracker, error) {
	var t model.TopicReadTracker
	err := r.db.GetContext(ctx, &t,
		"SELECT uid, tid, fid, last_read FROM topic_read_tracker WHERE uid = ? AND tid = ?", uid, tid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *trackerRepository) GetForum(ctx context.Context, uid int64, fid int) (*model.ForumReadTracker, error) {
	var t model.ForumReadTracker
	err := r.db.GetContext(ctx, &t,
		"SELECT uid, fid, last_read FROM forum_read_tracker WHERE uid = ? AND fid = ?", uid, fid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *trackerRepository) TopicTrackersInForum(ctx context.Context, uid int64, fid int) ([]*model.TopicReadTracker, error) {
	var trackers []*model.TopicReadTracker
	err := r.db.SelectContext(ctx, &trackers,
		"SELECT uid, tid, fid, last_read FROM topic_read_tracker WHERE uid = ? AND fid = ?", uid, fid)
	if err != nil {
		return nil, err
	}
	return trackers, nil
}

func (r *trackerRepository) CountTopicTrackers(ctx context.Context, uid int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM topic_read_tracker WHERE uid = ?", uid)
	return count, err
}

func (r *trackerRepository) OldestTopicTrackers(ctx context.Context, uid int64, n int) ([]*model.TopicReadTracker, error) {
	var trackers []*model.TopicReadTracker
	err := r.db.SelectContext(ctx, &trackers,
		"SELECT uid, tid, fid, last_read FROM topic_read_tracker WHERE uid = ? ORDER BY last_read ASC LIMIT ?",
		uid, n)
	if err != nil {
		return nil, err
	}
	return trackers, nil
}

func (r *trackerRepository) DeleteTopicTracker(ctx context.Context, uid, tid int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM topic_read_tracker WHERE uid = ? AND tid = ?", uid, tid)
	return err
}

func (r *trackerRepository) DeleteTopicTrackersInForum(ctx context.Context, uid int64, fid int) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM topic_read_tracker WHERE uid = ? AND fid = ?", uid, fid)
	return err
}

func (r *trackerRepository) DeleteByTopic(ctx context.Context, tid int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM topic_read_tracker WHERE tid = ?", tid)
	return err
}

func (r *trackerRepository) DeleteByForum(ctx context.Context, fid int) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM topic_read_tracker WHERE fid = ?", fid); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM forum_read_tracker WHERE fid = ?", fid)
	return err
}
