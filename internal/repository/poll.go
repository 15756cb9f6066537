package repository

import (
	"context"
	"database/sql"

	"agora_go/internal/model"
)

// PollRepository Poll data access interface
type PollRepository interface {
	GetPoll(ctx context.Context, tid int64) (*model.Poll, error)
	Answers(ctx context.Context, tid int64) ([]*model.PollAnswer, error)
	CreatePoll(ctx context.Context, poll *model.Poll, answers []*model.PollAnswer) error
	VotesByUser(ctx context.Context, uid, tid int64) ([]*model.PollVote, error)
	InsertVote(ctx context.Context, vote *model.PollVote) error
	DeleteVotesByUser(ctx context.Context, uid, tid int64) ([]*model.PollVote, error)
	AdjustVoteCount(ctx context.Context, aid int64, delta int) error
	CountVotes(ctx context.Context, tid int64) (int, error)
	DeleteByTopic(ctx context.Context, tid int64) error
}

type pollRepository struct {
	db Queryer
}

// NewPollRepository creates a PollRepository
func NewPollRepository(db Queryer) PollRepository {
	return &pollRepository{db: db}
}

func (r *pollRepository) GetPoll(ctx context.Context, tid int64) (*model.Poll, error) {
	var poll model.Poll
	err := r.db.GetContext(ctx, &poll, "SELECT tid, type, question FROM poll WHERE tid = ?", tid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &poll, nil
}

func (r *pollRepository) Answers(ctx context.Context, tid int64) ([]*model.PollAnswer, error) {
	var answers []*model.PollAnswer
	err := r.db.SelectContext(ctx, &answers,
		"SELECT aid, tid, text, vote_count FROM poll_answer WHERE tid = ? ORDER BY aid ASC", tid)
	if err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *pollRepository) CreatePoll(ctx context.Context, poll *model.Poll, answers []*model.PollAnswer) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO poll (tid, type, question) VALUES (?, ?, ?)",
		poll.Tid, poll.Type, poll.Question)
	if err != nil {
		return err
	}
	for _, a := range answers {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO poll_answer (aid, tid, text, vote_count) VALUES (?, ?, ?, ?)",
			a.Aid, a.Tid, a.Text, a.VoteCount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *pollRepository) VotesByUser(ctx context.Context, uid, tid int64) ([]*model.PollVote, error) {
	var votes []*model.PollVote
	err := r.db.SelectContext(ctx, &votes,
		"SELECT uid, aid, tid FROM poll_vote WHERE uid = ? AND tid = ?", uid, tid)
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *pollRepository) InsertVote(ctx context.Context, vote *model.PollVote) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO poll_vote (uid, aid, tid) VALUES (?, ?, ?)",
		vote.Uid, vote.Aid, vote.Tid)
	return err
}

// DeleteVotesByUser removes a user's votes in a topic and returns the
// removed rows so answer counts can be decremented to match.
func (r *pollRepository) DeleteVotesByUser(ctx context.Context, uid, tid int64) ([]*model.PollVote, error) {
	votes, err := r.VotesByUser(ctx, uid, tid)
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, nil
	}
	_, err = r.db.ExecContext(ctx, "DELETE FROM poll_vote WHERE uid = ? AND tid = ?", uid, tid)
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *pollRepository) AdjustVoteCount(ctx context.Context, aid int64, delta int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE poll_answer SET vote_count = vote_count + ? WHERE aid = ?", delta, aid)
	return err
}

func (r *pollRepository) CountVotes(ctx context.Context, tid int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM poll_vote WHERE tid = ?", tid)
	return count, err
}

func (r *pollRepository) DeleteByTopic(ctx context.Context, tid int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM poll_vote WHERE tid = ?", tid); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM poll_answer WHERE tid = ?", tid); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM poll WHERE tid = ?", tid)
	return err
}
