// ABOUTME: JWKS key source backed by keyfunc, caching signing keys from an identity provider
// ABOUTME: Refreshes periodically and when a token names an unknown key id, rate limited by a floor

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// KeySource resolves the verification key for a parsed token.
type KeySource interface {
	Key(ctx context.Context, token *jwt.Token) (any, error)
}

const (
	// DefaultMinRefresh limits how often an unknown kid triggers a refetch.
	DefaultMinRefresh = 30 * time.Second
	// DefaultRefreshInterval is the background refetch period.
	DefaultRefreshInterval = time.Hour

	fetchTimeout = 10 * time.Second
)

// JWKS is a KeySource backed by a JSON Web Key Set URL.
type JWKS struct {
	url    string
	kf     keyfunc.Keyfunc
	cached jwkset.Storage
	logger *slog.Logger
	cancel context.CancelFunc
}

type jwksOptions struct {
	httpClient      *http.Client
	minRefresh      time.Duration
	refreshInterval time.Duration
	logger          *slog.Logger
}

// JWKSOption configures a JWKS.
type JWKSOption func(*jwksOptions)

// WithJWKSHTTPClient sets the client used to fetch the key set.
func WithJWKSHTTPClient(c *http.Client) JWKSOption {
	return func(o *jwksOptions) { o.httpClient = c }
}

// WithMinRefresh sets the minimum interval between unknown-kid refetches.
func WithMinRefresh(d time.Duration) JWKSOption {
	return func(o *jwksOptions) { o.minRefresh = d }
}

// WithRefreshInterval sets the background refetch period.
func WithRefreshInterval(d time.Duration) JWKSOption {
	return func(o *jwksOptions) { o.refreshInterval = d }
}

// WithJWKSLogger sets the logger.
func WithJWKSLogger(l *slog.Logger) JWKSOption {
	return func(o *jwksOptions) { o.logger = l }
}

// NewJWKS creates a key source for url and performs the first fetch. A failed
// first fetch is not returned; Key reports it until a refetch succeeds.
// Background refreshes stop when ctx is done or Close is called.
func NewJWKS(ctx context.Context, url string, opts ...JWKSOption) (*JWKS, error) {
	o := jwksOptions{
		httpClient:      http.DefaultClient,
		minRefresh:      DefaultMinRefresh,
		refreshInterval: DefaultRefreshInterval,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "jwks")

	ctx, cancel := context.WithCancel(ctx)

	remote, err := jwkset.NewStorageFromHTTP(url, jwkset.HTTPClientStorageOptions{
		Client:                    o.httpClient,
		Ctx:                       ctx,
		HTTPTimeout:               fetchTimeout,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           o.refreshInterval,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			logger.Warn("refreshing key set failed", "url", url, "error", err)
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating jwks storage: %w", err)
	}

	client, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{url: remote},
		RateLimitWaitMax:  fetchTimeout,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(o.minRefresh), 1),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating jwks client: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:          ctx,
		Storage:      client,
		UseWhitelist: []jwkset.USE{jwkset.UseSig},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating keyfunc: %w", err)
	}

	return &JWKS{url: url, kf: kf, cached: remote, logger: logger, cancel: cancel}, nil
}

// Key returns the key for the token's kid. ErrKeyNotFound means the provider
// does not publish that kid as of the last fetch. An unknown kid refetches
// the set unless a refetch happened within the minimum refresh interval.
func (j *JWKS) Key(ctx context.Context, token *jwt.Token) (any, error) {
	key, err := j.kf.KeyfuncCtx(ctx)(token)
	if err == nil {
		return key, nil
	}

	if all, _ := j.cached.KeyReadAll(ctx); len(all) == 0 {
		return nil, fmt.Errorf("no keys available from %s: %w", j.url, err)
	}
	kid, _ := token.Header["kid"].(string)
	if _, readErr := j.cached.KeyRead(ctx, kid); errors.Is(readErr, jwkset.ErrKeyNotFound) {
		j.logger.Warn("public key not found for token", "kid", kid)
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	return nil, err
}

// Close stops background refreshes.
func (j *JWKS) Close() {
	j.cancel()
}
