package model

// Identity authenticated user supplied by the host application.
// The engine never authenticates; it only consumes this.
type Identity struct {
	Uid       int64
	Username  string
	Staff     bool
	Superuser bool
	Moderated []int // fids the user moderates
}

// Anonymous reports whether this is an unauthenticated visitor
func (id Identity) Anonymous() bool {
	return id.Uid == 0
}

// CanModerate reports whether the user may moderate the given forum
func (id Identity) CanModerate(fid int) bool {
	if id.Staff || id.Superuser {
		return true
	}
	for _, f := range id.Moderated {
		if f == fid {
			return true
		}
	}
	return false
}
