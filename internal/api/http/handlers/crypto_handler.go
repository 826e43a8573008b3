package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/banking-auth/internal/api/dto"
	"github.com/spec-kit/banking-auth/internal/keystore"
	apperrors "github.com/spec-kit/banking-auth/pkg/util/errorutil"
)

// CryptoHandler publishes the issuer's public keys.
type CryptoHandler struct {
	keys *keystore.KeyStore
}

// NewCryptoHandler constructs handler.
func NewCryptoHandler(keys *keystore.KeyStore) *CryptoHandler {
	return &CryptoHandler{keys: keys}
}

// SignaturePublicKey handles GET /api/crypto/server-dsa-public-key. Verifying services
// fetch this to check post-quantum tokens.
func (h *CryptoHandler) SignaturePublicKey(c *fiber.Ctx) error {
	encoded, err := h.keys.EncodedSignaturePublicKey()
	if err != nil {
		return apperrors.NewServiceUnavailable("signature key unavailable", err)
	}
	return c.JSON(dto.PublicKeyResponse{PublicKey: encoded, Algorithm: keystore.SignatureAlgorithm})
}

// KEMPublicKey handles GET /api/crypto/server-kem-public-key.
func (h *CryptoHandler) KEMPublicKey(c *fiber.Ctx) error {
	encoded, err := h.keys.EncodedKEMPublicKey()
	if err != nil {
		return apperrors.NewServiceUnavailable("key encapsulation key unavailable", err)
	}
	return c.JSON(dto.PublicKeyResponse{PublicKey: encoded, Algorithm: keystore.KEMAlgorithm})
}

// Health handles GET /api/crypto/health.
func (h *CryptoHandler) Health(c *fiber.Ctx) error {
	status := "UP"
	if !h.keys.Ready() {
		status = "DOWN"
	}
	return c.JSON(fiber.Map{
		"status":          status,
		"serverKeysReady": h.keys.Ready(),
		"mlDsaAlgorithm":  keystore.SignatureAlgorithm,
		"mlKemAlgorithm":  keystore.KEMAlgorithm,
	})
}
