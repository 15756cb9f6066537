package model

import "time"

// Forum board section, optionally nested under a parent forum
type Forum struct {
	Fid        int       `db:"fid"`
	Cid        int       `db:"cid"`
	Parent     int       `db:"parent"` // parent forum fid (0 = top level)
	Name       string    `db:"name"`
	Slug       string    `db:"slug"` // unique within owning category
	TopicCount int       `db:"topic_count"` // denormalized
	PostCount  int       `db:"post_count"`  // denormalized
	Updated    int64     `db:"updated"`     // max dateline of contained posts
	Position   int       `db:"position"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// ForumModerator moderator membership row
type ForumModerator struct {
	Fid int   `db:"fid"`
	Uid int64 `db:"uid"`
}
