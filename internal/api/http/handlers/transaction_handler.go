package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/banking-auth/internal/api/dto"
	"github.com/spec-kit/banking-auth/internal/auth"
	"github.com/spec-kit/banking-auth/internal/token"
)

// TransactionHandler serves the verifying service's endpoints.
type TransactionHandler struct {
	tokens  *token.Service
	service string
}

// NewTransactionHandler constructs handler.
func NewTransactionHandler(tokens *token.Service, serviceName string) *TransactionHandler {
	return &TransactionHandler{tokens: tokens, service: serviceName}
}

// Health handles GET /api/transactions/health.
func (h *TransactionHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "UP",
		"service":     h.service,
		"postQuantum": h.tokens.PostQuantumEnabled(),
		"algorithm":   h.tokens.Algorithm(),
	})
}

// Session handles GET /api/transactions/session.
func (h *TransactionHandler) Session(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return c.JSON(dto.SessionResponse{
		UserID:      principal.UserID,
		Username:    principal.Username,
		Role:        string(principal.Role),
		Algorithm:   principal.Algorithm,
		PostQuantum: principal.PostQuantum,
		ExpiresAt:   principal.ExpiresAt,
	})
}
