package service

import (
	"context"
	"sort"
	"sync"

	"agora_go/internal/core/config"
	"agora_go/internal/core/snowflake"
	"agora_go/internal/model"
	"agora_go/internal/repository"

	"github.com/go-sql-driver/mysql"
)

// In-memory repositories backing the engine tests. They reproduce the
// store behaviors the engines depend on: unique-key violations surface as
// MySQL error 1062, reads of missing rows return (nil, nil), listings
// keep the store's sort orders.

var errDuplicate = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

type utKey struct {
	uid, tid int64
}

type ufKey struct {
	uid int64
	fid int
}

type uaKey struct {
	uid, aid int64
}

type memStore struct {
	mu sync.Mutex

	categories map[int]*model.Category
	forums     map[int]*model.Forum
	moderators map[int]map[int64]bool
	topics     map[int64]*model.Topic
	posts      map[int64]*model.Post

	topicTrackers map[utKey]*model.TopicReadTracker
	forumTrackers map[ufKey]*model.ForumReadTracker

	polls       map[int64]*model.Poll
	pollAnswers map[int64]*model.PollAnswer
	pollVotes   map[uaKey]*model.PollVote

	subs  map[ufKey]*model.ForumSubscription
	notes []*model.Notification

	nextID int
}

func newMemStore() *memStore {
	snowflake.Init(&config.SnowflakeConfig{WorkerID: 1})
	return &memStore{
		categories:    make(map[int]*model.Category),
		forums:        make(map[int]*model.Forum),
		moderators:    make(map[int]map[int64]bool),
		topics:        make(map[int64]*model.Topic),
		posts:         make(map[int64]*model.Post),
		topicTrackers: make(map[utKey]*model.TopicReadTracker),
		forumTrackers: make(map[ufKey]*model.ForumReadTracker),
		polls:         make(map[int64]*model.Poll),
		pollAnswers:   make(map[int64]*model.PollAnswer),
		pollVotes:     make(map[uaKey]*model.PollVote),
		subs:          make(map[ufKey]*model.ForumSubscription),
		nextID:        1,
	}
}

func (s *memStore) repos() repository.Repos {
	return repository.Repos{
		Categories:    &memCategoryRepo{s},
		Forums:        &memForumRepo{s},
		Topics:        &memTopicRepo{s},
		Posts:         &memPostRepo{s},
		Trackers:      &memTrackerRepo{s},
		Polls:         &memPollRepo{s},
		Subscriptions: &memSubscriptionRepo{s},
	}
}

// memAtomic runs the function against the same store. Rollback semantics
// are not reproduced; tests assert on success paths and on failures that
// abort before mutating.
type memAtomic struct {
	s *memStore
}

func (a *memAtomic) Do(ctx context.Context, fn func(r repository.Repos) error) error {
	return fn(a.s.repos())
}

func (s *memStore) atomic() repository.Atomic {
	return &memAtomic{s}
}

// addForum seeds a category/forum pair
func (s *memStore) addForum(fid int, name string) *model.Forum {
	if _, ok := s.categories[1]; !ok {
		s.categories[1] = &model.Category{Cid: 1, Name: "General", Slug: "general"}
	}
	f := &model.Forum{Fid: fid, Cid: 1, Name: name, Slug: "forum-" + name}
	s.forums[fid] = f
	return f
}

// --- categories ---

type memCategoryRepo struct{ s *memStore }

func (r *memCategoryRepo) GetByID(ctx context.Context, cid int) (*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.categories[cid], nil
}

func (r *memCategoryRepo) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memCategoryRepo) GetAll(ctx context.Context, includeHidden bool) ([]*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Category
	for _, c := range r.s.categories {
		if c.Hidden && !includeHidden {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cid < out[j].Cid })
	return out, nil
}

func (r *memCategoryRepo) Slugs(ctx context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, c := range r.s.categories {
		out = append(out, c.Slug)
	}
	return out, nil
}

func (r *memCategoryRepo) Create(ctx context.Context, cat *model.Category) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.categories {
		if c.Slug == cat.Slug {
			return 0, errDuplicate
		}
	}
	cat.Cid = r.s.nextID
	r.s.nextID++
	r.s.categories[cat.Cid] = cat
	return cat.Cid, nil
}

func (r *memCategoryRepo) Update(ctx context.Context, cat *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.categories {
		if c.Cid != cat.Cid && c.Slug == cat.Slug {
			return errDuplicate
		}
	}
	r.s.categories[cat.Cid] = cat
	return nil
}

func (r *memCategoryRepo) Delete(ctx context.Context, cid int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.categories, cid)
	return nil
}

// --- forums ---

type memForumRepo struct{ s *memStore }

func (r *memForumRepo) GetByID(ctx context.Context, fid int) (*model.Forum, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.forums[fid], nil
}

func (r *memForumRepo) GetBySlug(ctx context.Context, cid int, slug string) (*model.Forum, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.forums {
		if f.Cid == cid && f.Slug == slug {
			return f, nil
		}
	}
	return nil, nil
}

func (r *memForumRepo) GetForUpdate(ctx context.Context, fid int) (*model.Forum, error) {
	return r.GetByID(ctx, fid)
}

func (r *memForumRepo) GetAll(ctx context.Context) ([]*model.Forum, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Forum
	for _, f := range r.s.forums {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fid < out[j].Fid })
	return out, nil
}

func (r *memForumRepo) GetByCategory(ctx context.Context, cid int) ([]*model.Forum, error) {
	all, _ := r.GetAll(ctx)
	var out []*model.Forum
	for _, f := range all {
		if f.Cid == cid {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memForumRepo) SlugsInCategory(ctx context.Context, cid int) ([]string, error) {
	forums, _ := r.GetByCategory(ctx, cid)
	var out []string
	for _, f := range forums {
		out = append(out, f.Slug)
	}
	return out, nil
}

func (r *memForumRepo) Create(ctx context.Context, forum *model.Forum) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.forums {
		if f.Cid == forum.Cid && f.Slug == forum.Slug {
			return 0, errDuplicate
		}
	}
	forum.Fid = r.s.nextID
	r.s.nextID++
	r.s.forums[forum.Fid] = forum
	return forum.Fid, nil
}

func (r *memForumRepo) Update(ctx context.Context, forum *model.Forum) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.forums {
		if f.Fid != forum.Fid && f.Cid == forum.Cid && f.Slug == forum.Slug {
			return errDuplicate
		}
	}
	r.s.forums[forum.Fid] = forum
	return nil
}

func (r *memForumRepo) Delete(ctx context.Context, fid int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.forums, fid)
	return nil
}

func (r *memForumRepo) UpdateCounters(ctx context.Context, fid, topicCount, postCount int, updated int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if f, ok := r.s.forums[fid]; ok {
		f.TopicCount = topicCount
		f.PostCount = postCount
		f.Updated = updated
	}
	return nil
}

func (r *memForumRepo) CountTopics(ctx context.Context, fid int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.topics {
		if t.Fid == fid {
			n++
		}
	}
	return n, nil
}

func (r *memForumRepo) CountPosts(ctx context.Context, fid int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.posts {
		if t, ok := r.s.topics[p.Tid]; ok && t.Fid == fid {
			n++
		}
	}
	return n, nil
}

func (r *memForumRepo) MaxPostTime(ctx context.Context, fid int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var max int64
	for _, p := range r.s.posts {
		if t, ok := r.s.topics[p.Tid]; ok && t.Fid == fid && p.Dateline > max {
			max = p.Dateline
		}
	}
	return max, nil
}

func (r *memForumRepo) AddModerator(ctx context.Context, fid int, uid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.moderators[fid] == nil {
		r.s.moderators[fid] = make(map[int64]bool)
	}
	r.s.moderators[fid][uid] = true
	return nil
}

func (r *memForumRepo) RemoveModerator(ctx context.Context, fid int, uid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.moderators[fid], uid)
	return nil
}

func (r *memForumRepo) Moderators(ctx context.Context, fid int) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []int64
	for uid := range r.s.moderators[fid] {
		out = append(out, uid)
	}
	return out, nil
}

func (r *memForumRepo) ModeratedBy(ctx context.Context, uid int64) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []int
	for fid, uids := range r.s.moderators {
		if uids[uid] {
			out = append(out, fid)
		}
	}
	return out, nil
}

// --- topics ---

type memTopicRepo struct{ s *memStore }

func (r *memTopicRepo) GetByID(ctx context.Context, tid int64) (*model.Topic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.topics[tid], nil
}

func (r *memTopicRepo) GetBySlug(ctx context.Context, fid int, slug string) (*model.Topic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.topics {
		if t.Fid == fid && t.Slug == slug {
			return t, nil
		}
	}
	return nil, nil
}

func (r *memTopicRepo) GetForUpdate(ctx context.Context, tid int64) (*model.Topic, error) {
	return r.GetByID(ctx, tid)
}

func (r *memTopicRepo) ListByForum(ctx context.Context, fid int, offset, limit int) ([]*model.Topic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Topic
	for _, t := range r.s.topics {
		if t.Fid == fid {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sticky != out[j].Sticky {
			return out[i].Sticky
		}
		return out[i].LastPost > out[j].LastPost
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTopicRepo) Summaries(ctx context.Context, fid int) ([]*model.TopicSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TopicSummary
	for _, t := range r.s.topics {
		if t.Fid == fid {
			out = append(out, &model.TopicSummary{Tid: t.Tid, Fid: t.Fid, LastPost: t.LastPost})
		}
	}
	return out, nil
}

func (r *memTopicRepo) ListOnModeration(ctx context.Context, offset, limit int) ([]*model.Topic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Topic
	for _, t := range r.s.topics {
		if t.OnModeration {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dateline < out[j].Dateline })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTopicRepo) ZeroPostTopics(ctx context.Context) ([]*model.TopicSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TopicSummary
	for _, t := range r.s.topics {
		found := false
		for _, p := range r.s.posts {
			if p.Tid == t.Tid {
				found = true
				break
			}
		}
		if !found {
			out = append(out, &model.TopicSummary{Tid: t.Tid, Fid: t.Fid, LastPost: t.LastPost})
		}
	}
	return out, nil
}

func (r *memTopicRepo) SlugsInForum(ctx context.Context, fid int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, t := range r.s.topics {
		if t.Fid == fid {
			out = append(out, t.Slug)
		}
	}
	return out, nil
}

func (r *memTopicRepo) Create(ctx context.Context, topic *model.Topic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.topics {
		if t.Fid == topic.Fid && t.Slug == topic.Slug {
			return errDuplicate
		}
	}
	cp := *topic
	r.s.topics[topic.Tid] = &cp
	return nil
}

func (r *memTopicRepo) Update(ctx context.Context, topic *model.Topic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *topic
	r.s.topics[topic.Tid] = &cp
	return nil
}

func (r *memTopicRepo) SetState(ctx context.Context, tid int64, sticky, closed, onModeration bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.topics[tid]; ok {
		t.Sticky = sticky
		t.Closed = closed
		t.OnModeration = onModeration
	}
	return nil
}

func (r *memTopicRepo) UpdateCounters(ctx context.Context, tid int64, postCount int, lastPost int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.topics[tid]; ok {
		t.PostCount = postCount
		t.LastPost = lastPost
	}
	return nil
}

func (r *memTopicRepo) Delete(ctx context.Context, tid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.topics, tid)
	return nil
}

func (r *memTopicRepo) CountPosts(ctx context.Context, tid int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.posts {
		if p.Tid == tid {
			n++
		}
	}
	return n, nil
}

func (r *memTopicRepo) MaxPostTime(ctx context.Context, tid int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var max int64
	for _, p := range r.s.posts {
		if p.Tid == tid && p.Dateline > max {
			max = p.Dateline
		}
	}
	return max, nil
}

// --- posts ---

type memPostRepo struct{ s *memStore }

func (r *memPostRepo) GetByID(ctx context.Context, pid int64) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.posts[pid], nil
}

func (r *memPostRepo) ListByTopic(ctx context.Context, tid int64, offset, limit int) ([]*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Post
	for _, p := range r.s.posts {
		if p.Tid == tid {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pid < out[j].Pid })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPostRepo) Create(ctx context.Context, post *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *post
	r.s.posts[post.Pid] = &cp
	return nil
}

func (r *memPostRepo) UpdateBody(ctx context.Context, pid int64, body, bodyHTML, bodyText string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.posts[pid]; ok {
		p.Body = body
		p.BodyHTML = bodyHTML
		p.BodyText = bodyText
	}
	return nil
}

func (r *memPostRepo) SetModeration(ctx context.Context, pid int64, onModeration bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.posts[pid]; ok {
		p.OnModeration = onModeration
	}
	return nil
}

func (r *memPostRepo) SetModerationByTopic(ctx context.Context, tid int64, onModeration bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.posts {
		if p.Tid == tid {
			p.OnModeration = onModeration
		}
	}
	return nil
}

func (r *memPostRepo) Delete(ctx context.Context, pid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.posts, pid)
	return nil
}

func (r *memPostRepo) DeleteByTopic(ctx context.Context, tid int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for pid, p := range r.s.posts {
		if p.Tid == tid {
			delete(r.s.posts, pid)
			n++
		}
	}
	return n, nil
}

// --- trackers ---

type memTrackerRepo struct{ s *memStore }

func (r *memTrackerRepo) UpsertTopic(ctx context.Context, uid, tid int64, fid int, lastRead int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := utKey{uid, tid}
	if t, ok := r.s.topicTrackers[k]; ok {
		if lastRead > t.LastRead {
			t.LastRead = lastRead
		}
		return nil
	}
	r.s.topicTrackers[k] = &model.TopicReadTracker{Uid: uid, Tid: tid, Fid: fid, LastRead: lastRead}
	return nil
}

func (r *memTrackerRepo) UpsertForum(ctx context.Context, uid int64, fid int, lastRead int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := ufKey{uid, fid}
	if t, ok := r.s.forumTrackers[k]; ok {
		if lastRead > t.LastRead {
			t.LastRead = lastRead
		}
		return nil
	}
	r.s.forumTrackers[k] = &model.ForumReadTracker{Uid: uid, Fid: fid, LastRead: lastRead}
	return nil
}

func (r *memTrackerRepo) GetTopic(ctx context.Context, uid, tid int64) (*model.TopicReadTracker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.topicTrackers[utKey{uid, tid}], nil
}

func (r *memTrackerRepo) GetForum(ctx context.Context, uid int64, fid int) (*model.ForumReadTracker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.forumTrackers[ufKey{uid, fid}], nil
}

func (r *memTrackerRepo) TopicTrackersInForum(ctx context.Context, uid int64, fid int) ([]*model.TopicReadTracker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TopicReadTracker
	for _, t := range r.s.topicTrackers {
		if t.Uid == uid && t.Fid == fid {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTrackerRepo) CountTopicTrackers(ctx context.Context, uid int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.topicTrackers {
		if t.Uid == uid {
			n++
		}
	}
	return n, nil
}

func (r *memTrackerRepo) OldestTopicTrackers(ctx context.Context, uid int64, n int) ([]*model.TopicReadTracker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TopicReadTracker
	for _, t := range r.s.topicTrackers {
		if t.Uid == uid {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastRead < out[j].LastRead })
	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func (r *memTrackerRepo) DeleteTopicTracker(ctx context.Context, uid, tid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.topicTrackers, utKey{uid, tid})
	return nil
}

func (r *memTrackerRepo) DeleteTopicTrackersInForum(ctx context.Context, uid int64, fid int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.topicTrackers {
		if t.Uid == uid && t.Fid == fid {
			delete(r.s.topicTrackers, k)
		}
	}
	return nil
}

func (r *memTrackerRepo) DeleteByTopic(ctx context.Context, tid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.topicTrackers {
		if t.Tid == tid {
			delete(r.s.topicTrackers, k)
		}
	}
	return nil
}

func (r *memTrackerRepo) DeleteByForum(ctx context.Context, fid int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.topicTrackers {
		if t.Fid == fid {
			delete(r.s.topicTrackers, k)
		}
	}
	for k, t := range r.s.forumTrackers {
		if t.Fid == fid {
			delete(r.s.forumTrackers, k)
		}
	}
	return nil
}

// --- polls ---

type memPollRepo struct{ s *memStore }

func (r *memPollRepo) GetPoll(ctx context.Context, tid int64) (*model.Poll, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.polls[tid], nil
}

func (r *memPollRepo) Answers(ctx context.Context, tid int64) ([]*model.PollAnswer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PollAnswer
	for _, a := range r.s.pollAnswers {
		if a.Tid == tid {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Aid < out[j].Aid })
	return out, nil
}

func (r *memPollRepo) CreatePoll(ctx context.Context, poll *model.Poll, answers []*model.PollAnswer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.polls[poll.Tid]; ok {
		return errDuplicate
	}
	r.s.polls[poll.Tid] = poll
	for _, a := range answers {
		r.s.pollAnswers[a.Aid] = a
	}
	return nil
}

func (r *memPollRepo) VotesByUser(ctx context.Context, uid, tid int64) ([]*model.PollVote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PollVote
	for _, v := range r.s.pollVotes {
		if v.Uid == uid && v.Tid == tid {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memPollRepo) InsertVote(ctx context.Context, vote *model.PollVote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := uaKey{vote.Uid, vote.Aid}
	if _, ok := r.s.pollVotes[k]; ok {
		return errDuplicate
	}
	r.s.pollVotes[k] = vote
	return nil
}

func (r *memPollRepo) DeleteVotesByUser(ctx context.Context, uid, tid int64) ([]*model.PollVote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed []*model.PollVote
	for k, v := range r.s.pollVotes {
		if v.Uid == uid && v.Tid == tid {
			removed = append(removed, v)
			delete(r.s.pollVotes, k)
		}
	}
	return removed, nil
}

func (r *memPollRepo) AdjustVoteCount(ctx context.Context, aid int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.pollAnswers[aid]; ok {
		a.VoteCount += delta
	}
	return nil
}

func (r *memPollRepo) CountVotes(ctx context.Context, tid int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, v := range r.s.pollVotes {
		if v.Tid == tid {
			n++
		}
	}
	return n, nil
}

func (r *memPollRepo) DeleteByTopic(ctx context.Context, tid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.polls, tid)
	for aid, a := range r.s.pollAnswers {
		if a.Tid == tid {
			delete(r.s.pollAnswers, aid)
		}
	}
	for k, v := range r.s.pollVotes {
		if v.Tid == tid {
			delete(r.s.pollVotes, k)
		}
	}
	return nil
}

// --- subscriptions ---

type memSubscriptionRepo struct{ s *memStore }

func (r *memSubscriptionRepo) Upsert(ctx context.Context, sub *model.ForumSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.subs[ufKey{sub.Uid, sub.Fid}] = sub
	return nil
}

func (r *memSubscriptionRepo) Delete(ctx context.Context, uid int64, fid int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.subs, ufKey{uid, fid})
	return nil
}

func (r *memSubscriptionRepo) ListByForum(ctx context.Context, fid int) ([]*model.ForumSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ForumSubscription
	for _, s := range r.s.subs {
		if s.Fid == fid {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSubscriptionRepo) ListByUser(ctx context.Context, uid int64) ([]*model.ForumSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ForumSubscription
	for _, s := range r.s.subs {
		if s.Uid == uid {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSubscriptionRepo) DeleteByForum(ctx context.Context, fid int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, s := range r.s.subs {
		if s.Fid == fid {
			delete(r.s.subs, k)
		}
	}
	return nil
}

func (r *memSubscriptionRepo) InsertNotification(ctx context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notes = append(r.s.notes, n)
	return nil
}

func (r *memSubscriptionRepo) NotificationsByUser(ctx context.Context, uid int64, offset, limit int) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.s.notes {
		if n.Uid == uid {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSubscriptionRepo) MarkNotificationsSeen(ctx context.Context, uid int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notes {
		if n.Uid == uid {
			n.Seen = true
		}
	}
	return nil
}
