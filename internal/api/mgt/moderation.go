package mgt

import (
	"errors"

	"github.com/gin-gonic/gin"

	"agora_go/internal/middleware"
	"agora_go/internal/pkg/apperr"
	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// ModerationHandler moderation queue and topic state administration
type ModerationHandler struct {
	lifecycle *service.Lifecycle
}

// NewModerationHandler creates a ModerationHandler
func NewModerationHandler(lifecycle *service.Lifecycle) *ModerationHandler {
	return &ModerationHandler{lifecycle: lifecycle}
}

// Queue GET /api/mgt/moderation
func (h *ModerationHandler) Queue(c *gin.Context) {
	page := 1
	pageSize := 20
	if p := c.Query("page"); p != "" {
		if parsed, err := util.StrToInt(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	user := middleware.GetIdentity(c)
	list, err := h.lifecycle.ModerationQueue(c.Request.Context(), user, (page-1)*pageSize, pageSize)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"page":      page,
		"page_size": pageSize,
	})
}

// transition runs one state change; a rejected transition is a warning,
// not an error.
func (h *ModerationHandler) transition(c *gin.Context, op func(c *gin.Context, tid int64) error) {
	tid, err := util.StrToInt64(c.Param("tid"))
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	if err := op(c, tid); err != nil {
		if errors.Is(err, apperr.ErrInvalidTopicState) {
			response.Warning(c, err)
			return
		}
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Approve POST /api/mgt/topic/:tid/approve
func (h *ModerationHandler) Approve(c *gin.Context) {
	h.transition(c, func(c *gin.Context, tid int64) error {
		return h.lifecycle.Approve(c.Request.Context(), middleware.GetIdentity(c), tid)
	})
}

// ApprovePost POST /api/mgt/post/:pid/approve
// Releases a single held reply from the queue.
func (h *ModerationHandler) ApprovePost(c *gin.Context) {
	pid, err := util.StrToInt64(c.Param("pid"))
	if err != nil {
		response.BadRequest(c, "invalid pid")
		return
	}

	if err := h.lifecycle.ApprovePost(c.Request.Context(), middleware.GetIdentity(c), pid); err != nil {
		if errors.Is(err, apperr.ErrInvalidTopicState) {
			response.Warning(c, err)
			return
		}
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Reject POST /api/mgt/topic/:tid/reject
func (h *ModerationHandler) Reject(c *gin.Context) {
	h.transition(c, func(c *gin.Context, tid int64) error {
		return h.lifecycle.Reject(c.Request.Context(), middleware.GetIdentity(c), tid)
	})
}

// Close POST /api/mgt/topic/:tid/close
func (h *ModerationHandler) Close(c *gin.Context) {
	h.transition(c, func(c *gin.Context, tid int64) error {
		return h.lifecycle.Close(c.Request.Context(), middleware.GetIdentity(c), tid)
	})
}

// Reopen POST /api/mgt/topic/:tid/reopen
func (h *ModerationHandler) Reopen(c *gin.Context) {
	h.transition(c, func(c *gin.Context, tid int64) error {
		return h.lifecycle.Reopen(c.Request.Context(), middleware.GetIdentity(c), tid)
	})
}

type stickyReq struct {
	Sticky bool `json:"sticky"`
}

// Sticky POST /api/mgt/topic/:tid/sticky
func (h *ModerationHandler) Sticky(c *gin.Context) {
	var req stickyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.transition(c, func(c *gin.Context, tid int64) error {
		return h.lifecycle.SetSticky(c.Request.Context(), middleware.GetIdentity(c), tid, req.Sticky)
	})
}

type grantReq struct {
	Uid  int64 `json:"uid" binding:"required"`
	Fids []int `json:"fids" binding:"required"`
}

// GrantModerator POST /api/mgt/moderators
func (h *ModerationHandler) GrantModerator(c *gin.Context) {
	var req grantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.lifecycle.GrantModerator(c.Request.Context(), req.Uid, req.Fids...); err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "moderator granted")
}
