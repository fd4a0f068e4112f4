package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/service"
)

// UserHandler covers customer registration and lookup.  Customers are
// identified by phone number and do not authenticate.
type UserHandler struct {
	Users       *repository.UserRepo
	Invalidator service.Invalidator
	Timeout     time.Duration
}

func NewUserHandler(users *repository.UserRepo, inv service.Invalidator, timeout time.Duration) *UserHandler {
	if users == nil {
		panic("nil repository passed to NewUserHandler")
	}
	return &UserHandler{Users: users, Invalidator: inv, Timeout: timeout}
}

type registerUserReq struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

type renameUserReq struct {
	PhoneNumber string `json:"phone_number"`
	NewName     string `json:"new_name"`
}

type userResp struct {
	UserID      uint64  `json:"user_id"`
	Name        *string `json:"name"`
	PhoneNumber string  `json:"phone_number"`
}

func (h *UserHandler) invalidate(c echo.Context) {
	if h.Invalidator != nil {
		h.Invalidator.Invalidate(c.Request().Context())
	}
}

// Register handles POST /v1/users.  A phone number can register once.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	phone := repository.NormalizePhone(req.PhoneNumber)
	if phone == "" {
		return badRequest(c, "phone_number is required")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Name, phone)
	if err != nil {
		return respondError(c, err)
	}
	h.invalidate(c)

	var name *string
	if n := strings.TrimSpace(req.Name); n != "" {
		name = &n
	}
	return c.JSON(http.StatusCreated, userResp{UserID: id, Name: name, PhoneNumber: phone})
}

// Check handles GET /v1/users/check?phone=.  It answers 404 for unknown
// numbers so clients know to register first.
func (h *UserHandler) Check(c echo.Context) error {
	phone := repository.NormalizePhone(c.QueryParam("phone"))
	if phone == "" {
		return badRequest(c, "phone is required")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Users.GetByPhone(ctx, phone)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, userResp{UserID: u.ID, Name: u.Name, PhoneNumber: u.PhoneNumber})
}

// Rename handles PUT /v1/users/rename.
func (h *UserHandler) Rename(c echo.Context) error {
	var req renameUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	phone := repository.NormalizePhone(req.PhoneNumber)
	name := strings.TrimSpace(req.NewName)
	if phone == "" || name == "" {
		return badRequest(c, "phone_number and new_name are required")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Users.Rename(ctx, phone, name); err != nil {
		return respondError(c, err)
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, echo.Map{"phone_number": phone, "name": name})
}
