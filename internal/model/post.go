package model

// Post single message inside a topic.
// BodyHTML and BodyText are derived from Body and always recomputed together.
type Post struct {
	Pid          int64  `db:"pid"`
	Tid          int64  `db:"tid"`
	Uid          int64  `db:"uid"`
	Dateline     int64  `db:"dateline"`
	Body         string `db:"body"`      // raw markup
	BodyHTML     string `db:"body_html"` // rendered, never user-editable
	BodyText     string `db:"body_text"` // plain text for search/preview
	OnModeration bool   `db:"on_moderation"`
}
