package repository

import (
	"context"

	"agora_go/internal/model"
)

// SubscriptionRepository ForumSubscription and Notification data access
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *model.ForumSubscription) error
	Delete(ctx context.Context, uid int64, fid int) error
	ListByForum(ctx context.Context, fid int) ([]*model.ForumSubscription, error)
	ListByUser(ctx context.Context, uid int64) ([]*model.ForumSubscription, error)
	DeleteByForum(ctx context.Context, fid int) error
	InsertNotification(ctx context.Context, n *model.Notification) error
	NotificationsByUser(ctx context.Context, uid int64, offset, limit int) ([]*model.Notification, error)
	MarkNotificationsSeen(ctx context.Context, uid int64) error
}

type subscriptionRepository struct {
	db Queryer
}

// NewSubscriptionRepository creates a SubscriptionRepository
func NewSubscriptionRepository(db Queryer) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.ForumSubscription) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO forum_subscription (uid, fid, type) VALUES (?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE type = VALUES(type)",
		sub.Uid, sub.Fid, sub.Type)
	return err
}

func (r *subscriptionRepository) Delete(ctx context.Context, uid int64, fid int) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM forum_subscription WHERE uid = ? AND fid = ?", uid, fid)
	return err
}

func (r *subscriptionRepository) ListByForum(ctx context.Context, fid int) ([]*model.ForumSubscription, error) {
	var subs []*model.ForumSubscription
	err := r.db.SelectContext(ctx, &subs,
		"SELECT uid, fid, type FROM forum_subscription WHERE fid = ?", fid)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, uid int64) ([]*model.ForumSubscription, error) {
	var subs []*model.ForumSubscription
	err := r.db.SelectContext(ctx, &subs,
		"SELECT uid, fid, type FROM forum_subscription WHERE uid = ?", uid)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriptionRepository) DeleteByForum(ctx context.Context, fid int) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM forum_subscription WHERE fid = ?", fid)
	return err
}

func (r *subscriptionRepository) InsertNotification(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO notification (nid, uid, tid, pid, kind, dateline, seen) VALUES (?, ?, ?, ?, ?, ?, ?)",
		n.Nid, n.Uid, n.Tid, n.Pid, n.Kind, n.Dateline, n.Seen)
	return err
}

func (r *subscriptionRepository) NotificationsByUser(ctx context.Context, uid int64, offset, limit int) ([]*model.Notification, error) {
	var ns []*model.Notification
	err := r.db.SelectContext(ctx, &ns,
		"SELECT nid, uid, tid, pid, kind, dateline, seen FROM notification WHERE uid = ? ORDER BY dateline DESC LIMIT ?, ?",
		uid, offset, limit)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (r *subscriptionRepository) MarkNotificationsSeen(ctx context.Context, uid int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE notification SET seen = 1 WHERE uid = ?", uid)
	return err
}
