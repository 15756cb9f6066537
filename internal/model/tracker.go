package model

// TopicReadTracker per-user marker of how far a topic has been read.
// At most one row per (uid, tid); writes are atomic upserts.
type TopicReadTracker struct {
	Uid      int64 `db:"uid"`
	Tid      int64 `db:"tid"`
	Fid      int   `db:"fid"` // denormalized for per-forum compaction
	LastRead int64 `db:"last_read"`
}

// ForumReadTracker coarse per-user marker covering a whole forum.
// Subsumes topic trackers once a forum is fully read.
type ForumReadTracker struct {
	Uid      int64 `db:"uid"`
	Fid      int   `db:"fid"`
	LastRead int64 `db:"last_read"`
}
