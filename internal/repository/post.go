package repository

import (
	"context"
	"database/sql"

	"agora_go/internal/model"
)

// PostRepository Post data access interface
type PostRepository interface {
	GetByID(ctx context.Context, pid int64) (*model.Post, error)
	ListByTopic(ctx context.Context, tid int64, offset, limit int) ([]*model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	// UpdateBody rewrites the raw body and both derived forms in one statement;
	// they are never written independently.
	UpdateBody(ctx context.Context, pid int64, body, bodyHTML, bodyText string) error
	SetModeration(ctx context.Context, pid int64, onModeration bool) error
	SetModerationByTopic(ctx context.Context, tid int64, onModeration bool) error
	Delete(ctx context.Context, pid int64) error
	DeleteByTopic(ctx context.Context, tid int64) (int, error)
}

type postRepository struct {
	db Queryer
}

// NewPostRepository creates a PostRepository
func NewPostRepository(db Queryer) PostRepository {
	return &postRepository{db: db}
}

const postCols = "pid, tid, uid, dateline, body, body_html, body_text, on_moderation"

func (r *postRepository) GetByID(ctx context.Context, pid int64) (*model.Post, error) {
	var post model.Post
	err := r.db.GetContext(ctx, &post, "SELECT "+postCols+" FROM post WHERE pid = ?", pid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListByTopic(ctx context.Context, tid int64, offset, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.SelectContext(ctx, &posts,
		"SELECT "+postCols+" FROM post WHERE tid = ? ORDER BY dateline ASC, pid ASC LIMIT ?, ?",
		tid, offset, limit)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO post (pid, tid, uid, dateline, body, body_html, body_text, on_moderation) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		post.Pid, post.Tid, post.Uid, post.Dateline, post.Body, post.BodyHTML, post.BodyText, post.OnModeration)
	return err
}

func (r *postRepository) UpdateBody(ctx context.Context, pid int64, body, bodyHTML, bodyText string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE post SET body = ?, body_html = ?, body_text = ? WHERE pid = ?",
		body, bodyHTML, bodyText, pid)
	return err
}

func (r *postRepository) SetModeration(ctx context.Context, pid int64, onModeration bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE post SET on_moderation = ? WHERE pid = ?", onModeration, pid)
	return err
}

func (r *postRepository) SetModerationByTopic(ctx context.Context, tid int64, onModeration bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE post SET on_moderation = ? WHERE tid = ?", onModeration, tid)
	return err
}

func (r *postRepository) Delete(ctx context.Context, pid int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM post WHERE pid = ?", pid)
	return err
}

// DeleteByTopic removes every post of a topic and reports how many rows
// went away so forum counters can be decremented by the exact amount.
func (r *postRepository) DeleteByTopic(ctx context.Context, tid int64) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM post WHERE tid = ?", tid)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
