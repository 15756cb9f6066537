package model

// Topic discussion thread inside a forum
type Topic struct {
	Tid          int64  `db:"tid"`
	Fid          int    `db:"fid"`
	Uid          int64  `db:"uid"`
	Name         string `db:"name"`
	Slug         string `db:"slug"` // unique within owning forum
	Sticky       bool   `db:"sticky"`
	Closed       bool   `db:"closed"`
	OnModeration bool   `db:"on_moderation"`
	PostCount    int    `db:"post_count"` // denormalized
	HeadPid      int64  `db:"head_pid"`   // first post; deleting it deletes the topic
	LastPost     int64  `db:"last_post"`  // dateline of the latest post
	Dateline     int64  `db:"dateline"`
}

// TopicSummary minimal projection used by read tracking and counters
type TopicSummary struct {
	Tid      int64 `db:"tid"`
	Fid      int   `db:"fid"`
	LastPost int64 `db:"last_post"`
}
