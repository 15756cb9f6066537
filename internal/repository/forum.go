package repository

import (
	"context"
	"database/sql"

	"agora_go/internal/model"
)

// ForumRepository Forum data access interface
type ForumRepository interface {
	GetByID(ctx context.Context, fid int) (*model.Forum, error)
	GetBySlug(ctx context.Context, cid int, slug string) (*model.Forum, error)
	// GetForUpdate locks the forum row for the enclosing transaction.
	GetForUpdate(ctx context.Context, fid int) (*model.Forum, error)
	GetAll(ctx context.Context) ([]*model.Forum, error)
	GetByCategory(ctx context.Context, cid int) ([]*model.Forum, error)
	SlugsInCategory(ctx context.Context, cid int) ([]string, error)
	Create(ctx context.Context, forum *model.Forum) (int, error)
	Update(ctx context.Context, forum *model.Forum) error
	Delete(ctx context.Context, fid int) error
	UpdateCounters(ctx context.Context, fid, topicCount, postCount int, updated int64) error
	CountTopics(ctx context.Context, fid int) (int, error)
	CountPosts(ctx context.Context, fid int) (int, error)
	MaxPostTime(ctx context.Context, fid int) (int64, error)
	AddModerator(ctx context.Context, fid int, uid int64) error
	RemoveModerator(ctx context.Context, fid int, uid int64) error
	Moderators(ctx context.Context, fid int) ([]int64, error)
	ModeratedBy(ctx context.Context, uid int64) ([]int, error)
}

type forumRepository struct {
	db Queryer
}

// NewForumRepository creates a ForumRepository
func NewForumRepository(db Queryer) ForumRepository {
	return &forumRepository{db: db}
}

const forumCols = "fid, cid, parent, name, slug, topic_count, post_count, updated, position, created_at, updated_at"

func (r *forumRepository) GetByID(ctx context.Context, fid int) (*model.Forum, error) {
	var forum model.Forum
	err := r.db.GetContext(ctx, &forum, "SELECT "+forumCols+" FROM forum WHERE fid = ?", fid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &forum, nil
}

func (r *forumRepository) GetBySlug(ctx context.Context, cid int, slug string) (*model.Forum, error) {
	var forum model.Forum
	err := r.db.GetContext(ctx, &forum, "SELECT "+forumCols+" FROM forum WHERE cid = ? AND slug = ?", cid, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &forum, nil
}

func (r *forumRepository) GetForUpdate(ctx context.Context, fid int) (*model.Forum, error) {
	var forum model.Forum
	err := r.db.GetContext(ctx, &forum, "SELECT "+forumCols+" FROM forum WHERE fid = ? FOR UPDATE", fid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &forum, nil
}

func (r *forumRepository) GetAll(ctx context.Context) ([]*model.Forum, error) {
	var forums []*model.Forum
	err := r.db.SelectContext(ctx, &forums, "SELECT "+forumCols+" FROM forum ORDER BY position ASC, fid ASC")
	if err != nil {
		return nil, err
	}
	return forums, nil
}

func (r *forumRepository) GetByCategory(ctx context.Context, cid int) ([]*model.Forum, error) {
	var forums []*model.Forum
	err := r.db.SelectContext(ctx, &forums,
		"SELECT "+forumCols+" FROM forum WHERE cid = ? ORDER BY position ASC, fid ASC", cid)
	if err != nil {
		return nil, err
	}
	return forums, nil
}

// SlugsInCategory returns every taken forum slug in a category, the
// allocation scope for new forums.
func (r *forumRepository) SlugsInCategory(ctx context.Context, cid int) ([]string, error) {
	var slugs []string
	if err := r.db.SelectContext(ctx, &slugs, "SELECT slug FROM forum WHERE cid = ?", cid); err != nil {
		return nil, err
	}
	return slugs, nil
}

func (r *forumRepository) Create(ctx context.Context, forum *model.Forum) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO forum (cid, parent, name, slug, topic_count, post_count, updated, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		forum.Cid, forum.Parent, forum.Name, forum.Slug, forum.TopicCount, forum.PostCount, forum.Updated, forum.Position)
	if err != nil {
		return 0, err
	}
	id, _ := result.LastInsertId()
	return int(id), nil
}

func (r *forumRepository) Update(ctx context.Context, forum *model.Forum) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE forum SET cid = ?, parent = ?, name = ?, slug = ?, position = ? WHERE fid = ?",
		forum.Cid, forum.Parent, forum.Name, forum.Slug, forum.Position, forum.Fid)
	return err
}

func (r *forumRepository) Delete(ctx context.Context, fid int) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM forum WHERE fid = ?", fid)
	return err
}

func (r *forumRepository) UpdateCounters(ctx context.Context, fid, topicCount, postCount int, updated int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE forum SET topic_count = ?, post_count = ?, updated = ? WHERE fid = ?",
		topicCount, postCount, updated, fid)
	return err
}

func (r *forumRepository) CountTopics(ctx context.Context, fid int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM topic WHERE fid = ?", fid)
	return count, err
}

func (r *forumRepository) CountPosts(ctx context.Context, fid int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM post p JOIN topic t ON p.tid = t.tid WHERE t.fid = ?", fid)
	return count, err
}

func (r *forumRepository) MaxPostTime(ctx context.Context, fid int) (int64, error) {
	var ts int64
	err := r.db.GetContext(ctx, &ts,
		"SELECT COALESCE(MAX(p.dateline), 0) FROM post p JOIN topic t ON p.tid = t.tid WHERE t.fid = ?", fid)
	return ts, err
}

func (r *forumRepository) AddModerator(ctx context.Context, fid int, uid int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO forum_moderator (fid, uid) VALUES (?, ?) ON DUPLICATE KEY UPDATE uid = uid",
		fid, uid)
	return err
}

func (r *forumRepository) RemoveModerator(ctx context.Context, fid int, uid int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM forum_moderator WHERE fid = ? AND uid = ?", fid, uid)
	return err
}

func (r *forumRepository) Moderators(ctx context.Context, fid int) ([]int64, error) {
	var uids []int64
	err := r.db.SelectContext(ctx, &uids, "SELECT uid FROM forum_moderator WHERE fid = ?", fid)
	return uids, err
}

func (r *forumRepository) ModeratedBy(ctx context.Context, uid int64) ([]int, error) {
	var fids []int
	err := r.db.SelectContext(ctx, &fids, "SELECT fid FROM forum_moderator WHERE uid = ?", uid)
	return fids, err
}
