package mgt

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/core/logger"
	"agora_go/internal/core/runtime"
	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// BoardHandler category and forum administration
type BoardHandler struct {
	categories *service.CategoryService
	forums     *service.ForumService
	rt         *runtime.RuntimeConfig
}

// NewBoardHandler creates a BoardHandler
func NewBoardHandler(categories *service.CategoryService, forums *service.ForumService, rt *runtime.RuntimeConfig) *BoardHandler {
	return &BoardHandler{categories: categories, forums: forums, rt: rt}
}

// reloadRuntime refreshes the warmed board structure after a mutation.
// The mutation already committed; a reload failure is logged, not surfaced.
func (h *BoardHandler) reloadRuntime() {
	if runtime.Get() == nil {
		return
	}
	if err := runtime.Get().Reload(h.rt); err != nil {
		logger.Error("board runtime reload failed", logger.String("error", err.Error()))
	}
}

// Snapshot GET /api/mgt/board
// Warmed board structure as the runtime currently serves it.
func (h *BoardHandler) Snapshot(c *gin.Context) {
	rt := runtime.Get()
	if rt == nil {
		response.InternalError(c, "runtime not initialized")
		return
	}

	cats := rt.Categories()
	trees := make(map[int][]*service.ForumTreeNode, len(cats))
	for _, cat := range cats {
		trees[cat.Cid] = rt.Tree(cat.Cid)
	}
	response.Success(c, gin.H{
		"status":     rt.Status(),
		"categories": cats,
		"trees":      trees,
	})
}

type categoryReq struct {
	Name     string `json:"name" binding:"required"`
	Hidden   bool   `json:"hidden"`
	Position int    `json:"position"`
}

// CreateCategory POST /api/mgt/categories
func (h *BoardHandler) CreateCategory(c *gin.Context) {
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	cat, err := h.categories.Create(c.Request.Context(), req.Name, req.Hidden, req.Position)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.reloadRuntime()
	response.Success(c, cat)
}

type renameReq struct {
	Name string `json:"name" binding:"required"`
}

// RenameCategory PUT /api/mgt/category/:cid
func (h *BoardHandler) RenameCategory(c *gin.Context) {
	cid, err := util.StrToInt(c.Param("cid"))
	if err != nil {
		response.BadRequest(c, "invalid cid")
		return
	}

	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	cat, err := h.categories.Rename(c.Request.Context(), cid, req.Name)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.reloadRuntime()
	response.Success(c, cat)
}

// DeleteCategory DELETE /api/mgt/category/:cid
// Removes the category and everything beneath it.
func (h *BoardHandler) DeleteCategory(c *gin.Context) {
	cid, err := util.StrToInt(c.Param("cid"))
	if err != nil {
		response.BadRequest(c, "invalid cid")
		return
	}

	if err := h.categories.Delete(c.Request.Context(), cid); err != nil {
		response.Fail(c, err)
		return
	}
	h.reloadRuntime()
	response.SuccessWithMsg(c, nil, "category deleted")
}

type forumReq struct {
	Cid      int    `json:"cid" binding:"required"`
	Parent   int    `json:"parent"`
	Name     string `json:"name" binding:"required"`
	Position int    `json:"position"`
}

// CreateForum POST /api/mgt/forums
func (h *BoardHandler) CreateForum(c *gin.Context) {
	var req forumReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	forum, err := h.forums.Create(c.Request.Context(), req.Cid, req.Parent, req.Name, req.Position)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.reloadRuntime()
	response.Success(c, forum)
}

// RenameForum PUT /api/mgt/forum/:fid
func (h *BoardHandler) RenameForum(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	forum, err := h.forums.Rename(c.Request.Context(), fid, req.Name)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.reloadRuntime()
	response.Success(c, forum)
}

type moveReq struct {
	Cid int `json:"cid" binding:"required"`
}

// MoveForum PUT /api/mgt/forum/:fid/move
func (h *BoardHandler) MoveForum(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	var req moveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.forums.Move(c.Request.Context(), fid, req.Cid); err != nil {
		response.Fail(c, err)
		return
	}
	h.reloadRuntime()
	response.SuccessWithMsg(c, nil, "forum moved")
}

// DeleteForum DELETE /api/mgt/forum/:fid
func (h *BoardHandler) DeleteForum(c *gin.Context) {
	fid, err := util.StrToInt(c.Param("fid"))
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	if err := h.forums.Delete(c.Request.Context(), fid); err != nil {
		response.Fail(c, err)
		return
	}
	h.reloadRuntime()
	response.SuccessWithMsg(c, nil, "forum deleted")
}
