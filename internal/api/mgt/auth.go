package mgt

import (
	"github.com/gin-gonic/gin"

	"agora_go/internal/core/config"
	"agora_go/internal/middleware"
	"agora_go/internal/model"
	"agora_go/internal/pkg/response"
)

// TokenRequest identity token request.
// The engine does not authenticate users; this endpoint lets the host
// application (or an operator on the admin whitelist) mint tokens for
// identities it has already verified.
type TokenRequest struct {
	Uid       int64  `json:"uid" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Staff     bool   `json:"staff"`
	Superuser bool   `json:"superuser"`
}

// TokenResponse identity token response
type TokenResponse struct {
	Token string `json:"token"`
}

// IssueToken POST /api/mgt/token
func IssueToken(c *gin.Context, cfg *config.JWTConfig) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := middleware.GenerateToken(model.Identity{
		Uid:       req.Uid,
		Username:  req.Username,
		Staff:     req.Staff,
		Superuser: req.Superuser,
	}, cfg)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, TokenResponse{Token: token})
}
