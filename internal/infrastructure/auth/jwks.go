package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// DefaultRefreshInterval is how often the key set is refetched.
const DefaultRefreshInterval = 1 * time.Hour

// JWKSConfig configures JWKSValidator.
type JWKSConfig struct {
	URL             string
	RefreshInterval time.Duration
	Options         Options
	Logger          *zap.Logger
}

// JWKSValidator validates RS256/ES256 tokens against a remote key set.
type JWKSValidator struct {
	jwks   keyfunc.Keyfunc
	opts   []jwt.ParserOption
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewJWKSValidator fetches the key set and starts background refresh.
func NewJWKSValidator(config JWKSConfig) (*JWKSValidator, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrJWKSFetchFailed)
	}
	if config.RefreshInterval == 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("initializing JWKS validator",
		zap.String("jwks_url", config.URL),
		zap.Duration("refresh_interval", config.RefreshInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())

	storage, err := jwkset.NewStorageFromHTTP(config.URL, jwkset.HTTPClientStorageOptions{
		Ctx:             ctx,
		RefreshInterval: config.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("failed to refresh JWKS", zap.Error(err))
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	jwks, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	return &JWKSValidator{
		jwks:   jwks,
		opts:   config.Options.parserOptions("RS256", "ES256"),
		logger: logger,
		cancel: cancel,
	}, nil
}

// Validate checks signature and registered claims.
func (v *JWKSValidator) Validate(_ context.Context, tokenString string) (*Claims, error) {
	return parse(tokenString, v.jwks.Keyfunc, v.opts)
}

// Close stops background JWKS refresh.
func (v *JWKSValidator) Close() error {
	v.logger.Info("closing JWKS validator")
	if v.cancel != nil {
		v.cancel()
	}
	return nil
}
