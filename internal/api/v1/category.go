package v1

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/middleware"
	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// CategoryHandler Category API Handler
type CategoryHandler struct {
	svc    *service.CategoryService
	forums *service.ForumService
}

// NewCategoryHandler creates a CategoryHandler
func NewCategoryHandler(svc *service.CategoryService, forums *service.ForumService) *CategoryHandler {
	return &CategoryHandler{svc: svc, forums: forums}
}

// List GET /api/v1/categories
func (h *CategoryHandler) List(c *gin.Context) {
	user := middleware.GetIdentity(c)
	list, err := h.svc.List(c.Request.Context(), user)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// Get GET /api/v1/category/:cid
// Responds with the category and its forum tree.
func (h *CategoryHandler) Get(c *gin.Context) {
	cid, err := util.StrToInt(c.Param("cid"))
	if err != nil {
		response.BadRequest(c, "invalid cid")
		return
	}

	user := middleware.GetIdentity(c)
	cat, err := h.svc.Get(c.Request.Context(), user, cid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if cat == nil {
		response.NotFound(c, "category not found")
		return
	}

	tree, err := h.forums.GetTree(c.Request.Context(), cid)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"category": cat,
		"forums":   tree,
	})
}
