package service

import (
	"context"
	"time"

	"agora_go/internal/core/logger"
	"agora_go/internal/core/snowflake"
	"agora_go/internal/model"
	"agora_go/internal/repository"
)

// NotifyService fans out notification rows to forum subscribers. Registered
// against the lifecycle engine's hooks; delivery failures are logged, never
// propagated back into the write path.
type NotifyService struct {
	repos repository.Repos
}

// NewNotifyService creates a NotifyService
func NewNotifyService(repos repository.Repos) *NotifyService {
	return &NotifyService{repos: repos}
}

// Subscribe upserts a forum subscription
func (s *NotifyService) Subscribe(ctx context.Context, user model.Identity, fid int, subType int) error {
	if user.Anonymous() {
		return nil
	}
	return s.repos.Subscriptions.Upsert(ctx, &model.ForumSubscription{Uid: user.Uid, Fid: fid, Type: subType})
}

// Unsubscribe removes a forum subscription
func (s *NotifyService) Unsubscribe(ctx context.Context, user model.Identity, fid int) error {
	if user.Anonymous() {
		return nil
	}
	return s.repos.Subscriptions.Delete(ctx, user.Uid, fid)
}

// Notifications lists a user's notifications, newest first
func (s *NotifyService) Notifications(ctx context.Context, uid int64, page, pageSize int) ([]*model.Notification, error) {
	return s.repos.Subscriptions.NotificationsByUser(ctx, uid, (page-1)*pageSize, pageSize)
}

// MarkSeen marks all of a user's notifications seen
func (s *NotifyService) MarkSeen(ctx context.Context, uid int64) error {
	return s.repos.Subscriptions.MarkNotificationsSeen(ctx, uid)
}

func (s *NotifyService) fanOut(ctx context.Context, fid int, author int64, tid, pid int64, kind int, wantAll bool) {
	subs, err := s.repos.Subscriptions.ListByForum(ctx, fid)
	if err != nil {
		logger.Error("subscription fan-out failed",
			logger.Int("fid", fid),
			logger.ErrorField(err))
		return
	}
	now := time.Now().Unix()
	for _, sub := range subs {
		if sub.Uid == author {
			continue
		}
		if wantAll && sub.Type != model.SubAllTopics {
			continue
		}
		n := &model.Notification{
			Nid:      snowflake.Generate(),
			Uid:      sub.Uid,
			Tid:      tid,
			Pid:      pid,
			Kind:     kind,
			Dateline: now,
		}
		if err := s.repos.Subscriptions.InsertNotification(ctx, n); err != nil {
			logger.Error("notification insert failed",
				logger.Int64("uid", sub.Uid),
				logger.ErrorField(err))
		}
	}
}

// OnTopicCreated Hooks implementation: both subscription types hear about
// new topics.
func (s *NotifyService) OnTopicCreated(ctx context.Context, topic *model.Topic, head *model.Post) {
	if topic.OnModeration {
		return // nothing leaves the moderation queue
	}
	s.fanOut(ctx, topic.Fid, topic.Uid, topic.Tid, head.Pid, model.NotifyNewTopic, false)
}

// OnPostCreated Hooks implementation: only all-topics subscribers hear
// about replies.
func (s *NotifyService) OnPostCreated(ctx context.Context, topic *model.Topic, post *model.Post) {
	if post.OnModeration {
		return
	}
	s.fanOut(ctx, topic.Fid, post.Uid, topic.Tid, post.Pid, model.NotifyNewPost, true)
}

// OnPostDeleted Hooks implementation: no-op
func (s *NotifyService) OnPostDeleted(ctx context.Context, post *model.Post, topicDeleted bool) {}

// OnTopicStateChanged Hooks implementation: approval releases the topic to
// subscribers that never saw it while on moderation.
func (s *NotifyService) OnTopicStateChanged(ctx context.Context, topic *model.Topic, from, to TopicState) {
	if from == StateOnModeration && to == StateOpen {
		s.fanOut(ctx, topic.Fid, topic.Uid, topic.Tid, topic.HeadPid, model.NotifyNewTopic, false)
	}
}
