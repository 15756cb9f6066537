package service

import (
	"context"
	"fmt"

	"agora_go/internal/model"
	"agora_go/internal/pkg/apperr"
	"agora_go/internal/repository"
)

// PollService poll voting with denormalized answer counts
type PollService struct {
	atomic repository.Atomic
	repos  repository.Repos
}

// PollDTO poll with its answers and the total ballots cast
type PollDTO struct {
	Tid        int64               `json:"tid"`
	Type       int                 `json:"type"`
	Question   string              `json:"question"`
	Answers    []*model.PollAnswer `json:"answers"`
	TotalVotes int                 `json:"total_votes"`
}

// NewPollService creates a PollService
func NewPollService(atomic repository.Atomic, repos repository.Repos) *PollService {
	return &PollService{atomic: atomic, repos: repos}
}

// Get returns the poll attached to a topic, nil when there is none.
func (s *PollService) Get(ctx context.Context, tid int64) (*PollDTO, error) {
	poll, err := s.repos.Polls.GetPoll(ctx, tid)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, nil
	}
	answers, err := s.repos.Polls.Answers(ctx, tid)
	if err != nil {
		return nil, err
	}
	total, err := s.repos.Polls.CountVotes(ctx, tid)
	if err != nil {
		return nil, err
	}
	return &PollDTO{Tid: poll.Tid, Type: poll.Type, Question: poll.Question, Answers: answers, TotalVotes: total}, nil
}

// Vote records a user's choice(s). Single-choice polls replace any prior
// vote; multiple-choice polls accumulate distinct answers. Vote counts are
// adjusted in the same transaction as the vote rows.
func (s *PollService) Vote(ctx context.Context, user model.Identity, tid int64, aids []int64) error {
	if user.Anonymous() {
		return apperr.ErrUnauthorized
	}
	if len(aids) == 0 {
		return apperr.ErrInvalidParams
	}

	return s.atomic.Do(ctx, func(r repository.Repos) error {
		topic, err := r.Topics.GetByID(ctx, tid)
		if err != nil {
			return err
		}
		if topic == nil {
			return fmt.Errorf("topic %d: %w", tid, apperr.ErrNotFound)
		}
		if topic.Closed {
			return apperr.ErrTopicClosed
		}

		poll, err := r.Polls.GetPoll(ctx, tid)
		if err != nil {
			return err
		}
		if poll == nil {
			return apperr.ErrNoPoll
		}
		if poll.Type == model.PollSingleChoice && len(aids) > 1 {
			return apperr.ErrPollChoice
		}

		answers, err := r.Polls.Answers(ctx, tid)
		if err != nil {
			return err
		}
		valid := make(map[int64]bool, len(answers))
		for _, a := range answers {
			valid[a.Aid] = true
		}
		for _, aid := range aids {
			if !valid[aid] {
				return apperr.ErrPollChoice
			}
		}

		if poll.Type == model.PollSingleChoice {
			removed, err := r.Polls.DeleteVotesByUser(ctx, user.Uid, tid)
			if err != nil {
				return err
			}
			for _, v := range removed {
				if err := r.Polls.AdjustVoteCount(ctx, v.Aid, -1); err != nil {
					return err
				}
			}
		}

		cast, err := r.Polls.VotesByUser(ctx, user.Uid, tid)
		if err != nil {
			return err
		}
		already := make(map[int64]bool, len(cast))
		for _, v := range cast {
			already[v.Aid] = true
		}

		for _, aid := range aids {
			if already[aid] {
				continue
			}
			if err := r.Polls.InsertVote(ctx, &model.PollVote{Uid: user.Uid, Aid: aid, Tid: tid}); err != nil {
				// Concurrent duplicate vote: the row exists, counts are right.
				if repository.IsDuplicateKey(err) {
					continue
				}
				return err
			}
			if err := r.Polls.AdjustVoteCount(ctx, aid, 1); err != nil {
				return err
			}
		}
		return nil
	})
}
