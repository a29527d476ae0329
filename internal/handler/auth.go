package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/config"
	"github.com/iliyamo/dorm-occupancy/internal/middleware"
	"github.com/iliyamo/dorm-occupancy/internal/utils"
)

// AuthHandler issues admin access tokens.
type AuthHandler struct {
	cfg config.Config
	log *zap.Logger
}

// NewAuthHandler returns a handler checking credentials against cfg.
func NewAuthHandler(cfg config.Config, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{cfg: cfg, log: log}
}

type tokenReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Token handles POST /auth/token.  The username must equal ADMIN_USER and the
// password must match ADMIN_PASSWORD_HASH.
func (h *AuthHandler) Token(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: "username/password required"})
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.AdminUser)) == 1
	passOK := utils.VerifyPassword(h.cfg.AdminPasswordHash, req.Password)
	if !userOK || !passOK {
		h.log.Warn("admin login rejected", zap.String("username", req.Username), zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "invalid credentials"})
	}
	tok, err := utils.NewAccessToken(h.cfg.JWTSecret, h.cfg.AdminUser, middleware.RoleAdmin, h.cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp})
}
