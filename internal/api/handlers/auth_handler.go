package handlers

import (
	"net/http"
	"os"

	"github.com/andgrowhq/chatwidget/internal/api/middleware"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login checks the shared admin password against ADMIN_PASSWORD_HASH and
// issues a short-lived token for the admin routes.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Login", "password is required", err))
		return
	}

	hash := os.Getenv("ADMIN_PASSWORD_HASH")
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if hash == "" || secret == "" {
		// A token signed with an empty secret would be rejected by the
		// admin middleware anyway; fail here with a clear signal.
		writeError(c, utils.E(utils.CodeUnavailable, "AuthHandler.Login", "admin login is not configured", nil))
		return
	}

	if err := utils.CheckPassword(hash, req.Password); err != nil {
		writeError(c, utils.E(utils.CodeUnauthorized, "AuthHandler.Login", "invalid credentials", err))
		return
	}

	token, err := middleware.IssueAdminToken(secret)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "AuthHandler.Login", "failed to issue token", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
