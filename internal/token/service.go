package token

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/banking-auth/internal/config"
	"github.com/spec-kit/banking-auth/internal/keystore"
)

// Recorder receives issuance and verification outcomes. observability.Metrics satisfies it.
type Recorder interface {
	RecordTokenIssued(algorithm string)
	RecordVerification(algorithm, outcome string)
}

// Service is the single entry point for token operations. The provider is chosen once
// at construction; callers never branch on the post-quantum flag themselves.
type Service struct {
	provider Provider
	logger   *zap.Logger
	recorder Recorder
}

// NewService wraps an explicitly chosen provider. logger and recorder may be nil.
func NewService(provider Provider, logger *zap.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, logger: logger, recorder: recorder}
}

// NewServiceFromConfig selects the authoritative provider from cfg.UsePostQuantum. The
// key store must already be initialized when the post-quantum scheme is selected.
func NewServiceFromConfig(cfg config.AuthConfig, keys *keystore.KeyStore, logger *zap.Logger, recorder Recorder, opts ...Option) (*Service, error) {
	var provider Provider
	if cfg.UsePostQuantum {
		if !keys.Ready() {
			return nil, ErrKeyStoreUninitialized
		}
		provider = NewPostQuantumProvider(keys, cfg.AccessTokenTTL(), opts...)
	} else {
		if cfg.JWTSecret == "" {
			return nil, errors.New("classical token provider requires a shared secret")
		}
		provider = NewHMACProvider(cfg.JWTSecret, cfg.AccessTokenTTL(), opts...)
	}

	svc := NewService(provider, logger, recorder)
	svc.logger.Info("token provider selected",
		zap.String("algorithm", provider.Algorithm()),
		zap.Bool("post_quantum", cfg.UsePostQuantum))
	return svc, nil
}

// Algorithm returns the alg of the selected provider.
func (s *Service) Algorithm() string {
	return s.provider.Algorithm()
}

// PostQuantumEnabled reports whether the post-quantum scheme is authoritative.
func (s *Service) PostQuantumEnabled() bool {
	return s.provider.Algorithm() == AlgorithmMLDSA65
}

// Issue signs a token for an authenticated subject.
func (s *Service) Issue(subject string, userID int64) (string, time.Time, error) {
	tok, exp, err := s.provider.Issue(subject, userID)
	if err != nil {
		s.logger.Error("token issuance failed",
			zap.String("algorithm", s.provider.Algorithm()),
			zap.String("subject", subject),
			zap.Error(err))
		return "", time.Time{}, err
	}
	if s.recorder != nil {
		s.recorder.RecordTokenIssued(s.provider.Algorithm())
	}
	return tok, exp, nil
}

// Claims fully validates raw and returns its claims. The error carries the failure kind.
func (s *Service) Claims(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.provider.Parse(ctx, raw)
	kind := Kind(err)
	if s.recorder != nil {
		s.recorder.RecordVerification(s.provider.Algorithm(), kind)
	}
	if err != nil {
		fields := []zap.Field{
			zap.String("algorithm", s.provider.Algorithm()),
			zap.String("kind", kind),
			zap.Error(err),
		}
		if IsFatal(err) {
			s.logger.Error("token verification could not run", fields...)
		} else {
			s.logger.Debug("token rejected", fields...)
		}
		return nil, err
	}
	return claims, nil
}

// Verify collapses token-level failures into false. Only failures that prevent a trust
// decision (missing key store, unreachable issuer key) are returned as errors.
func (s *Service) Verify(ctx context.Context, raw string) (bool, error) {
	if _, err := s.Claims(ctx, raw); err != nil {
		if IsFatal(err) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// SubjectOf validates raw and returns its sub claim.
func (s *Service) SubjectOf(ctx context.Context, raw string) (string, error) {
	claims, err := s.Claims(ctx, raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// UserIDOf validates raw and returns its userId claim.
func (s *Service) UserIDOf(ctx context.Context, raw string) (int64, error) {
	claims, err := s.Claims(ctx, raw)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
