package mgt

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// MaintenanceHandler counter repair, purge and cache administration
type MaintenanceHandler struct {
	counters  *service.CounterEngine
	lifecycle *service.Lifecycle
	forums    *service.ForumService
	topics    *service.TopicService
}

// NewMaintenanceHandler creates a MaintenanceHandler
func NewMaintenanceHandler(counters *service.CounterEngine, lifecycle *service.Lifecycle, forums *service.ForumService, topics *service.TopicService) *MaintenanceHandler {
	return &MaintenanceHandler{counters: counters, lifecycle: lifecycle, forums: forums, topics: topics}
}

// RecomputeForum POST /api/mgt/counters/forum/:fid
// Rebuilds one forum's counts and last-post pointer from the post table.
func (h *MaintenanceHandler) RecomputeForum(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	if err := h.counters.RecomputeForum(c.Request.Context(), fid); err != nil {
		response.Fail(c, err)
		return
	}
	h.forums.Invalidate(fid)
	response.SuccessWithMsg(c, nil, "forum counters recomputed")
}

// RecomputeTopic POST /api/mgt/counters/topic/:tid
func (h *MaintenanceHandler) RecomputeTopic(c *gin.Context) {
	tid, err := util.StrToInt64(c.Param("tid"))
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	if err := h.counters.RecomputeTopic(c.Request.Context(), tid); err != nil {
		response.Fail(c, err)
		return
	}
	h.topics.Invalidate(tid)
	response.SuccessWithMsg(c, nil, "topic counters recomputed")
}

// RecomputeAll POST /api/mgt/counters/recompute
// Full rebuild; heavyweight, intended for after imports or repairs.
func (h *MaintenanceHandler) RecomputeAll(c *gin.Context) {
	if err := h.counters.RecomputeAll(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	h.forums.Flush()
	if err := h.topics.Flush(); err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "all counters recomputed")
}

// PurgeEmptyTopics POST /api/mgt/topics/purge-empty
// Deletes topics that hold no posts.
func (h *MaintenanceHandler) PurgeEmptyTopics(c *gin.Context) {
	deleted, err := h.lifecycle.DeleteZeroPostTopics(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}

// FlushCache POST /api/mgt/cache/flush
func (h *MaintenanceHandler) FlushCache(c *gin.Context) {
	h.forums.Flush()
	if err := h.topics.Flush(); err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "cache flushed")
}
