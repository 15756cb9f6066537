package model

// Poll choice types
const (
	PollNone = iota
	PollSingleChoice
	PollMultipleChoice
)

// Poll optional poll attached to a topic
type Poll struct {
	Tid      int64  `db:"tid"`
	Type     int    `db:"type"`
	Question string `db:"question"`
}

// PollAnswer one selectable answer with a denormalized vote count
type PollAnswer struct {
	Aid       int64  `db:"aid"`
	Tid       int64  `db:"tid"`
	Text      string `db:"text"`
	VoteCount int    `db:"vote_count"`
}

// PollVote a single user's vote for an answer.
// Multiple rows per (uid, tid) only when the poll is multiple-choice.
type PollVote struct {
	Uid int64 `db:"uid"`
	Aid int64 `db:"aid"`
	Tid int64 `db:"tid"`
}
