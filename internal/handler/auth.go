package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/logger"
	"github.com/iliyamo/turf-reservation/internal/middleware"
	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/utils"
)

// AuthHandler bundles dependencies for admin auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Admins *repository.AdminRepo
}

func NewAuthHandler(cfg config.Config, a *repository.AdminRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Admins: a}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type adminPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

type authResp struct {
	Admin  adminPart `json:"admin"`
	Access tokenPart `json:"access"`
}

func (h *AuthHandler) issue(c echo.Context, status int, id uint64, username string) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, utils.RoleAdmin, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(status, authResp{
		Admin:  adminPart{ID: id, Username: username},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Register creates an admin.  The first admin may register freely; after
// that the caller must present an admin token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = repository.NormalizeUsername(req.Username)
	if req.Username == "" {
		return badRequest(c, "username is required")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := requestContext(c, h.Cfg.RequestTimeout)
	defer cancel()

	n, err := h.Admins.Count(ctx)
	if err != nil {
		return respondError(c, err)
	}
	if n > 0 {
		if role, _ := c.Get(middleware.CtxRole).(string); role != utils.RoleAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin token required"})
		}
	}

	id, err := h.Admins.Create(ctx, req.Username, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, err)
	}
	logger.Info("admin registered", "admin_id", id, "username", req.Username, "bootstrap", n == 0)
	return h.issue(c, http.StatusCreated, id, req.Username)
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = repository.NormalizeUsername(req.Username)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username/password required")
	}

	ctx, cancel := requestContext(c, h.Cfg.RequestTimeout)
	defer cancel()

	a, err := h.Admins.GetByUsername(ctx, req.Username)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return respondError(c, err)
	}
	if !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if utils.NeedsRehash(a.PasswordHash, h.Cfg.BcryptCost) {
		if err := h.Admins.UpdatePassword(ctx, a.ID, req.Password, h.Cfg.BcryptCost); err != nil {
			logger.Warn("password rehash failed", "admin_id", a.ID, "err", err)
		}
	}
	return h.issue(c, http.StatusOK, a.ID, a.Username)
}

// ResetPassword sets a new password for the named admin.  It requires an
// admin token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = repository.NormalizeUsername(req.Username)
	if req.Username == "" {
		return badRequest(c, "username is required")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := requestContext(c, h.Cfg.RequestTimeout)
	defer cancel()

	a, err := h.Admins.GetByUsername(ctx, req.Username)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Admins.UpdatePassword(ctx, a.ID, req.Password, h.Cfg.BcryptCost); err != nil {
		return respondError(c, err)
	}
	actor, _ := middleware.AdminID(c)
	logger.Info("admin password reset", "admin_id", a.ID, "by", actor)
	return c.NoContent(http.StatusNoContent)
}
