package model

import "time"

// Category top-level container for forums
type Category struct {
	Cid       int       `db:"cid"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`   // unique across categories
	Hidden    bool      `db:"hidden"` // staff-only visibility
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
