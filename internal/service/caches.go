package service

// Caches bridges the write engine to the read-path cache tiers.
// Satisfies CacheInvalidator.
type Caches struct {
	Forums *ForumService
	Topics *TopicService
}

func (c *Caches) InvalidateTopic(tid int64) {
	if c.Topics != nil {
		c.Topics.Invalidate(tid)
	}
}

func (c *Caches) InvalidateForum(fid int) {
	if c.Forums != nil {
		c.Forums.Invalidate(fid)
	}
}
