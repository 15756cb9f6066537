package v1

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/core/logger"
	"agora_go/internal/middleware"
	"agora_go/internal/pkg/response"
	"agora_go/internal/pkg/util"
	"agora_go/internal/service"
)

// TopicHandler Topic API Handler
type TopicHandler struct {
	svc       *service.TopicService
	lifecycle *service.Lifecycle
	polls     *service.PollService
	tracker   *service.ReadTracker
}

// NewTopicHandler creates a TopicHandler
func NewTopicHandler(svc *service.TopicService, lifecycle *service.Lifecycle, polls *service.PollService, tracker *service.ReadTracker) *TopicHandler {
	return &TopicHandler{svc: svc, lifecycle: lifecycle, polls: polls, tracker: tracker}
}

func pageParams(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if parsed, err := util.StrToInt(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if parsed, err := util.StrToInt(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}
	return page, pageSize
}

// List GET /api/v1/topics?fid=
func (h *TopicHandler) List(c *gin.Context) {
	fidStr := c.Query("fid")
	if fidStr == "" {
		response.BadRequest(c, "fid is required")
		return
	}
	fid, err := util.StrToInt(fidStr)
	if err != nil {
		response.BadRequest(c, "invalid fid")
		return
	}

	page, pageSize := pageParams(c)
	user := middleware.GetIdentity(c)

	list, err := h.svc.ListByForum(c.Request.Context(), user, fid, (page-1)*pageSize, pageSize)
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

// Get GET /api/v1/topic/:tid
// Returns the topic, a page of posts and the attached poll, and records
// the visit in the caller's read tracking.
func (h *TopicHandler) Get(c *gin.Context) {
	tid, err := util.StrToInt64(c.Param("tid"))
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	user := middleware.GetIdentity(c)
	ctx := c.Request.Context()

	dto, err := h.svc.Get(ctx, tid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if dto == nil {
		response.NotFound(c, "topic not found")
		return
	}
	if dto.OnModeration && !user.CanModerate(dto.Fid) && dto.Uid != user.Uid {
		response.NotFound(c, "topic not found")
		return
	}

	page, pageSize := pageParams(c)
	posts, err := h.svc.Posts(ctx, user, tid, (page-1)*pageSize, pageSize)
	if err != nil {
		response.Fail(c, err)
		return
	}

	poll, err := h.polls.Get(ctx, tid)
	if err != nil {
		response.Fail(c, err)
		return
	}

	// viewing is what marks a topic read; failures must not break the page
	if err := h.tracker.MarkTopicRead(ctx, user, tid); err != nil {
		logger.Warn("mark topic read failed",
			logger.Int64("tid", tid), logger.String("error", err.Error()))
	}

	response.Success(c, gin.H{
		"topic":     dto,
		"posts":     posts,
		"poll":      poll,
		"page":      page,
		"page_size": pageSize,
	})
}

type createTopicReq struct {
	Fid  int    `json:"fid" binding:"required"`
	Name string `json:"name" binding:"required"`
	Body string `json:"body" binding:"required"`
	Poll *struct {
		Type     int      `json:"type"`
		Question string   `json:"question"`
		Answers  []string `json:"answers"`
	} `json:"poll"`
}

// Create POST /api/v1/topics
func (h *TopicHandler) Create(c *gin.Context) {
	var req createTopicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user := middleware.GetIdentity(c)

	var spec *service.PollSpec
	if req.Poll != nil {
		spec = &service.PollSpec{
			Type:     req.Poll.Type,
			Question: req.Poll.Question,
			Answers:  req.Poll.Answers,
		}
	}

	topic, err := h.lifecycle.CreateTopic(c.Request.Context(), user, req.Fid, req.Name, req.Body, spec)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"tid":           topic.Tid,
		"slug":          topic.Slug,
		"on_moderation": topic.OnModeration,
	})
}

type replyReq struct {
	Body string `json:"body" binding:"required"`
}

// Reply POST /api/v1/topic/:tid/posts
func (h *TopicHandler) Reply(c *gin.Context) {
	tid, err := util.StrToInt64(c.Param("tid"))
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	var req replyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user := middleware.GetIdentity(c)
	post, err := h.lifecycle.CreateReply(c.Request.Context(), user, tid, req.Body)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"pid":           post.Pid,
		"on_moderation": post.OnModeration,
	})
}

// MarkRead POST /api/v1/topic/:tid/read
func (h *TopicHandler) MarkRead(c *gin.Context) {
	tid, err := util.StrToInt64(c.Param("tid"))
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	user := middleware.GetIdentity(c)
	if err := h.tracker.MarkTopicRead(c.Request.Context(), user, tid); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, nil)
}

type voteReq struct {
	Answers []int64 `json:"answers" binding:"required"`
}

// Vote POST /api/v1/topic/:tid/vote
func (h *TopicHandler) Vote(c *gin.Context) {
	tid, err := util.StrToInt64(c.Param("tid"))
	if err != nil {
		response.BadRequest(c, "invalid tid")
		return
	}

	var req voteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user := middleware.GetIdentity(c)
	if err := h.polls.Vote(c.Request.Context(), user, tid, req.Answers); err != nil {
		response.Fail(c, err)
		return
	}

	poll, err := h.polls.Get(c.Request.Context(), tid)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, poll)
}
