package v1

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/middleware"
	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// SubscriptionHandler forum subscriptions and notifications
type SubscriptionHandler struct {
	svc *service.NotifyService
}

// NewSubscriptionHandler creates a SubscriptionHandler
func NewSubscriptionHandler(svc *service.NotifyService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

type subscribeReq struct {
	Type int `json:"type"` // 0 = new topics only, 1 = all topics
}

// Subscribe POST /api/v1/forum/:fid/subscribe
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	var req subscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user := middleware.GetIdentity(c)
	if err := h.svc.Subscribe(c.Request.Context(), user, fid, req.Type); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Unsubscribe DELETE /api/v1/forum/:fid/subscribe
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	user := middleware.GetIdentity(c)
	if err := h.svc.Unsubscribe(c.Request.Context(), user, fid); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Notifications GET /api/v1/notifications
func (h *SubscriptionHandler) Notifications(c *gin.Context) {
	user := middleware.GetIdentity(c)

	page, pageSize := pageParams(c)
	list, err := h.svc.Notifications(c.Request.Context(), user.Uid, page, pageSize)
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

// MarkSeen POST /api/v1/notifications/seen
func (h *SubscriptionHandler) MarkSeen(c *gin.Context) {
	user := middleware.GetIdentity(c)
	if err := h.svc.MarkSeen(c.Request.Context(), user.Uid); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}
