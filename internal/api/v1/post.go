package v1

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/middleware"
	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// PostHandler Post API Handler
type PostHandler struct {
	svc       *service.TopicService
	lifecycle *service.Lifecycle
}

// NewPostHandler creates a PostHandler
func NewPostHandler(svc *service.TopicService, lifecycle *service.Lifecycle) *PostHandler {
	return &PostHandler{svc: svc, lifecycle: lifecycle}
}

// Raw GET /api/v1/post/:pid/raw
// Returns the editable markup, author or moderator only.
func (h *PostHandler) Raw(c *gin.Context) {
	pid, err := util.StrToInt64(c.Param("pid"))
	if err != nil {
		response.BadRequest(c, "invalid pid")
		return
	}

	user := middleware.GetIdentity(c)
	body, err := h.svc.RawBody(c.Request.Context(), user, pid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if body == "" {
		response.NotFound(c, "post not found")
		return
	}
	response.Success(c, gin.H{"body": body})
}

type editReq struct {
	Body string `json:"body" binding:"required"`
}

// Edit PUT /api/v1/post/:pid
func (h *PostHandler) Edit(c *gin.Context) {
	pid, err := util.StrToInt64(c.Param("pid"))
	if err != nil {
		response.BadRequest(c, "invalid pid")
		return
	}

	var req editReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user := middleware.GetIdentity(c)
	if err := h.lifecycle.EditPost(c.Request.Context(), user, pid, req.Body); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Delete DELETE /api/v1/post/:pid
// Deleting a topic's head post deletes the whole topic.
func (h *PostHandler) Delete(c *gin.Context) {
	pid, err := util.StrToInt64(c.Param("pid"))
	if err != nil {
		response.BadRequest(c, "invalid pid")
		return
	}

	user := middleware.GetIdentity(c)
	if err := h.lifecycle.DeletePost(c.Request.Context(), user, pid); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}
