package v1

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/middleware"
	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// ForumHandler Forum API Handler
type ForumHandler struct {
	svc     *service.ForumService
	tracker *service.ReadTracker
}

// NewForumHandler creates a ForumHandler
func NewForumHandler(svc *service.ForumService, tracker *service.ReadTracker) *ForumHandler {
	return &ForumHandler{svc: svc, tracker: tracker}
}

// Get GET /api/v1/forum/:fid
func (h *ForumHandler) Get(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	dto, err := h.svc.Get(c.Request.Context(), fid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if dto == nil {
		response.NotFound(c, "forum not found")
		return
	}
	response.Success(c, dto)
}

// MarkRead POST /api/v1/forum/:fid/read
// Marks every topic in the forum as read for the caller.
func (h *ForumHandler) MarkRead(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	user := middleware.GetIdentity(c)
	if err := h.tracker.MarkForumRead(c.Request.Context(), user, fid); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}
