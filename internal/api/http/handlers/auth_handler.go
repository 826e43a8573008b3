package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/banking-auth/internal/api/dto"
	"github.com/spec-kit/banking-auth/internal/auth"
	"github.com/spec-kit/banking-auth/internal/domain"
	"github.com/spec-kit/banking-auth/internal/service"
)

// AuthHandler exposes the issuer's authentication endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	service string
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, serviceName string) *AuthHandler {
	return &AuthHandler{auth: authService, service: serviceName}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, issued, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      domain.Role(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewAuthResponse(user, issued))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "username and password required")
	}

	user, issued, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAuthResponse(user, issued))
}

// Validate handles GET /api/auth/validate. Unlike the middleware it also accepts a bare
// token in the Authorization header.
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	raw := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(raw, "Bearer ") {
		raw = auth.BearerToken(raw)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fiber.NewError(http.StatusBadRequest, "authorization header required")
	}

	valid, err := h.auth.Validate(c.UserContext(), raw)
	if err != nil {
		return err
	}
	return c.JSON(dto.ValidateResponse{Valid: valid, Algorithm: h.auth.Algorithm()})
}

// Health handles GET /api/auth/health.
func (h *AuthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "UP",
		"service":     h.service,
		"postQuantum": h.auth.PostQuantumEnabled(),
		"algorithm":   h.auth.Algorithm(),
	})
}

// KYCStatus handles GET /api/auth/user/:userId/kyc-status.
func (h *AuthHandler) KYCStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid user id")
	}

	user, err := h.auth.KYCStatus(c.UserContext(), principal, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.KYCStatusResponse{
		UserID:     user.ID,
		Username:   user.Username,
		KYCStatus:  user.KYCStatus,
		CustomerID: user.CustomerID,
	})
}
