package service

import (
	"context"
	"errors"
	"testing"

	"agora_go/internal/model"
	"agora_go/internal/pkg/apperr"
)

var moderator = model.Identity{Uid: 900, Username: "mod", Staff: true}

func TestCreateTopicPersistsTopicWithHeadPost(t *testing.T) {
	s, lc, _ := newBoard(t)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Hello World", "first post", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	stored := s.topics[topic.Tid]
	if stored == nil {
		t.Fatal("topic not persisted")
	}
	if stored.Slug != "hello-world" {
		t.Errorf("slug = %q, want hello-world", stored.Slug)
	}
	head := s.posts[topic.HeadPid]
	if head == nil {
		t.Fatal("head post not persisted")
	}
	if head.BodyHTML == "" || head.BodyText == "" {
		t.Error("derived body forms not rendered")
	}
}

func TestCreateTopicRejectsAnonymousAndEmpty(t *testing.T) {
	_, lc, _ := newBoard(t)
	ctx := context.Background()

	if _, err := lc.CreateTopic(ctx, model.Identity{}, 10, "x", "y", nil); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("anonymous: err = %v, want ErrUnauthorized", err)
	}
	if _, err := lc.CreateTopic(ctx, alice, 10, "", "y", nil); !errors.Is(err, apperr.ErrInvalidParams) {
		t.Errorf("empty name: err = %v, want ErrInvalidParams", err)
	}
	if _, err := lc.CreateTopic(ctx, alice, 10, "x", "", nil); !errors.Is(err, apperr.ErrInvalidParams) {
		t.Errorf("empty body: err = %v, want ErrInvalidParams", err)
	}
}

func TestDuplicateTopicNamesGetSuffixedSlugs(t *testing.T) {
	s, lc, _ := newBoard(t)
	ctx := context.Background()

	t1, err := lc.CreateTopic(ctx, alice, 10, "Same Name", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	t2, err := lc.CreateTopic(ctx, bob, 10, "Same Name", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	if s.topics[t1.Tid].Slug != "same-name" {
		t.Errorf("first slug = %q", s.topics[t1.Tid].Slug)
	}
	if s.topics[t2.Tid].Slug != "same-name-2" {
		t.Errorf("second slug = %q, want same-name-2", s.topics[t2.Tid].Slug)
	}
}

func TestHeadPostDeleteCascades(t *testing.T) {
	s, lc, _ := newBoard(t)
	ctx := context.Background()
	rt := NewReadTracker(s.atomic(), s.repos(), 0)

	topic, err := lc.CreateTopic(ctx, alice, 10, "Doomed", "body", &PollSpec{
		Type:     model.PollSingleChoice,
		Question: "keep it?",
		Answers:  []string{"yes", "no"},
	})
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	if _, err := lc.CreateReply(ctx, bob, topic.Tid, "reply"); err != nil {
		t.Fatalf("CreateReply: %v", err)
	}
	if err := rt.MarkTopicRead(ctx, bob, topic.Tid); err != nil {
		t.Fatalf("MarkTopicRead: %v", err)
	}

	if err := lc.DeletePost(ctx, alice, topic.HeadPid); err != nil {
		t.Fatalf("DeletePost(head): %v", err)
	}

	if s.topics[topic.Tid] != nil {
		t.Error("topic row survived cascade")
	}
	for pid, p := range s.posts {
		if p.Tid == topic.Tid {
			t.Errorf("post %d survived cascade", pid)
		}
	}
	if s.polls[topic.Tid] != nil {
		t.Error("poll survived cascade")
	}
	for _, a := range s.pollAnswers {
		if a.Tid == topic.Tid {
			t.Error("poll answer survived cascade")
		}
	}
	for _, tr := range s.topicTrackers {
		if tr.Tid == topic.Tid {
			t.Error("read tracker survived cascade")
		}
	}
}

func TestNonAuthorCannotDeleteOrEdit(t *testing.T) {
	_, lc, _ := newBoard(t)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Mine", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	if err := lc.DeletePost(ctx, bob, topic.HeadPid); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("delete: err = %v, want ErrForbidden", err)
	}
	if err := lc.EditPost(ctx, bob, topic.HeadPid, "hijacked"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("edit: err = %v, want ErrForbidden", err)
	}
	// a moderator may do both
	if err := lc.EditPost(ctx, moderator, topic.HeadPid, "cleaned up"); err != nil {
		t.Errorf("moderator edit: %v", err)
	}
}

func TestClosedTopicRejectsReplies(t *testing.T) {
	_, lc, _ := newBoard(t)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Closing", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	if err := lc.Close(ctx, moderator, topic.Tid); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := lc.CreateReply(ctx, bob, topic.Tid, "too late"); !errors.Is(err, apperr.ErrTopicClosed) {
		t.Errorf("reply to closed: err = %v, want ErrTopicClosed", err)
	}
	// moderators post through the closure
	if _, err := lc.CreateReply(ctx, moderator, topic.Tid, "locking note"); err != nil {
		t.Errorf("moderator reply: %v", err)
	}
}

func TestInvalidTransitionIsWarningNoOp(t *testing.T) {
	s, lc, _ := newBoard(t)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Stateful", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	// reopening an open topic must not change anything
	err = lc.Reopen(ctx, moderator, topic.Tid)
	if !errors.Is(err, apperr.ErrInvalidTopicState) {
		t.Fatalf("err = %v, want ErrInvalidTopicState", err)
	}
	if s.topics[topic.Tid].Closed {
		t.Fatal("no-op transition mutated state")
	}

	// approving an open topic likewise
	if err := lc.Approve(ctx, moderator, topic.Tid); !errors.Is(err, apperr.ErrInvalidTopicState) {
		t.Fatalf("err = %v, want ErrInvalidTopicState", err)
	}
}

func TestCloseReopenRoundTrip(t *testing.T) {
	s, lc, _ := newBoard(t)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Stateful", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	if err := lc.Close(ctx, moderator, topic.Tid); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !s.topics[topic.Tid].Closed {
		t.Fatal("topic not closed")
	}
	if err := lc.Reopen(ctx, moderator, topic.Tid); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if s.topics[topic.Tid].Closed {
		t.Fatal("topic not reopened")
	}
	// sticky is orthogonal and survives transitions
	if err := lc.SetSticky(ctx, moderator, topic.Tid, true); err != nil {
		t.Fatalf("SetSticky: %v", err)
	}
	if err := lc.Close(ctx, moderator, topic.Tid); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !s.topics[topic.Tid].Sticky {
		t.Fatal("sticky flag lost across transition")
	}
}

func TestPreModerationHoldsAndApproves(t *testing.T) {
	s := newMemStore()
	s.addForum(10, "general")
	counters := NewCounterEngine(s.atomic())
	lc := NewLifecycle(s.atomic(), s.repos(), counters, EscapeRenderer{}, NewSlugAllocator(0), true)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Pending", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	if !s.topics[topic.Tid].OnModeration {
		t.Fatal("topic should be held on moderation")
	}
	if !s.posts[topic.HeadPid].OnModeration {
		t.Fatal("head post should be held on moderation")
	}

	// moderators bypass the hold
	modTopic, err := lc.CreateTopic(ctx, moderator, 10, "Staff post", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	if s.topics[modTopic.Tid].OnModeration {
		t.Fatal("moderator's topic should not be held")
	}

	if err := lc.Approve(ctx, moderator, topic.Tid); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if s.topics[topic.Tid].OnModeration {
		t.Fatal("topic still on moderation after approval")
	}
	if s.posts[topic.HeadPid].OnModeration {
		t.Fatal("approval did not release the held post")
	}
}

func TestRejectCascades(t *testing.T) {
	s := newMemStore()
	s.addForum(10, "general")
	counters := NewCounterEngine(s.atomic())
	lc := NewLifecycle(s.atomic(), s.repos(), counters, EscapeRenderer{}, NewSlugAllocator(0), true)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Spam", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	if err := lc.Reject(ctx, moderator, topic.Tid); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if s.topics[topic.Tid] != nil {
		t.Fatal("rejected topic still present")
	}
	if s.forums[10].TopicCount != 0 || s.forums[10].PostCount != 0 {
		t.Fatalf("forum counters = %d/%d after reject, want 0/0",
			s.forums[10].TopicCount, s.forums[10].PostCount)
	}

	// rejecting an open topic is refused
	open, err := lc.CreateTopic(ctx, moderator, 10, "Fine", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	if err := lc.Reject(ctx, moderator, open.Tid); !errors.Is(err, apperr.ErrInvalidTopicState) {
		t.Fatalf("err = %v, want ErrInvalidTopicState", err)
	}
}

func TestDeleteZeroPostTopics(t *testing.T) {
	s, lc, _ := newBoard(t)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Orphan", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	// simulate a missed cascade: the post vanished, the topic stayed
	delete(s.posts, topic.HeadPid)

	deleted, err := lc.DeleteZeroPostTopics(ctx)
	if err != nil {
		t.Fatalf("DeleteZeroPostTopics: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if s.topics[topic.Tid] != nil {
		t.Fatal("orphaned topic still present")
	}
	if s.forums[10].TopicCount != 0 {
		t.Fatalf("forum topic_count = %d, want 0", s.forums[10].TopicCount)
	}
}

func TestForumModeratorScopedPermissions(t *testing.T) {
	s, lc, _ := newBoard(t)
	s.addForum(20, "offtopic")
	ctx := context.Background()

	if err := lc.GrantModerator(ctx, 500, 10); err != nil {
		t.Fatalf("GrantModerator: %v", err)
	}
	fids, err := s.repos().Forums.ModeratedBy(ctx, 500)
	if err != nil {
		t.Fatalf("ModeratedBy: %v", err)
	}
	if len(fids) != 1 || fids[0] != 10 {
		t.Fatalf("moderated forums = %v, want [10]", fids)
	}

	scoped := model.Identity{Uid: 500, Username: "scoped", Moderated: fids}
	inScope, err := lc.CreateTopic(ctx, alice, 10, "Here", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	outOfScope, err := lc.CreateTopic(ctx, alice, 20, "There", "body", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	if err := lc.Close(ctx, scoped, inScope.Tid); err != nil {
		t.Errorf("close in moderated forum: %v", err)
	}
	if err := lc.Close(ctx, scoped, outOfScope.Tid); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("close outside moderated forum: err = %v, want ErrForbidden", err)
	}
}

func TestRepeatedDeleteIsNotFoundWithoutDoubleDecrement(t *testing.T) {
	s, lc, _ := newBoard(t)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, alice, 10, "Contested", "opener", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	reply, err := lc.CreateReply(ctx, bob, topic.Tid, "going away")
	if err != nil {
		t.Fatalf("CreateReply: %v", err)
	}

	if err := lc.DeletePost(ctx, bob, reply.Pid); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	f := s.forums[10]
	if f.PostCount != 1 || s.topics[topic.Tid].PostCount != 1 {
		t.Fatalf("after delete: forum/topic post counts = %d/%d, want 1/1",
			f.PostCount, s.topics[topic.Tid].PostCount)
	}

	// A second delete of the same row fails the in-transaction existence
	// check and must not touch the counters again.
	if err := lc.DeletePost(ctx, bob, reply.Pid); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
	if f.PostCount != 1 || s.topics[topic.Tid].PostCount != 1 {
		t.Fatalf("second delete moved counters: forum/topic = %d/%d, want 1/1",
			f.PostCount, s.topics[topic.Tid].PostCount)
	}

	if err := lc.DeletePost(ctx, alice, topic.HeadPid); err != nil {
		t.Fatalf("head delete: %v", err)
	}
	if err := lc.DeletePost(ctx, alice, topic.HeadPid); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("repeat head delete: err = %v, want ErrNotFound", err)
	}
	if f.PostCount != 0 || f.TopicCount != 0 {
		t.Fatalf("after topic delete: forum topic/post = %d/%d, want 0/0",
			f.TopicCount, f.PostCount)
	}
}

func TestApprovePostReleasesHeldReply(t *testing.T) {
	s := newMemStore()
	s.addForum(10, "general")
	counters := NewCounterEngine(s.atomic())
	lc := NewLifecycle(s.atomic(), s.repos(), counters, EscapeRenderer{}, NewSlugAllocator(0), true)
	ctx := context.Background()

	topic, err := lc.CreateTopic(ctx, moderator, 10, "Announcements", "opener", nil)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	reply, err := lc.CreateReply(ctx, alice, topic.Tid, "held until reviewed")
	if err != nil {
		t.Fatalf("CreateReply: %v", err)
	}
	if !reply.OnModeration {
		t.Fatal("reply should be held for moderation")
	}

	if err := lc.ApprovePost(ctx, bob, reply.Pid); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-moderator approval: err = %v, want ErrForbidden", err)
	}
	if err := lc.ApprovePost(ctx, moderator, reply.Pid); err != nil {
		t.Fatalf("ApprovePost: %v", err)
	}
	if s.posts[reply.Pid].OnModeration {
		t.Error("reply still held after approval")
	}

	// Releasing an already-released post is a warning no-op.
	if err := lc.ApprovePost(ctx, moderator, reply.Pid); !errors.Is(err, apperr.ErrInvalidTopicState) {
		t.Fatalf("repeat approval: err = %v, want ErrInvalidTopicState", err)
	}
}
