package model

// Subscription types
const (
	SubNotifyNewTopics = iota
	SubAllTopics
)

// Notification kinds
const (
	NotifyNewTopic = iota
	NotifyNewPost
)

// ForumSubscription per-user subscription to a forum
type ForumSubscription struct {
	Uid  int64 `db:"uid"`
	Fid  int   `db:"fid"`
	Type int   `db:"type"`
}

// Notification delivered to a subscriber when new content appears
type Notification struct {
	Nid      int64 `db:"nid"`
	Uid      int64 `db:"uid"`
	Tid      int64 `db:"tid"`
	Pid      int64 `db:"pid"`
	Kind     int   `db:"kind"`
	Dateline int64 `db:"dateline"`
	Seen     bool  `db:"seen"`
}
