// Package lineauth verifies LINE access tokens and ID tokens issued to the LIFF app.
package lineauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyellow/weamind-linebot-go/internal/config"
	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
)

const (
	// DefaultAPIBaseURL is the LINE platform API origin.
	DefaultAPIBaseURL = "https://api.line.me"

	// Issuer is the iss claim of LINE ID tokens.
	Issuer = "https://access.line.me"

	// clockSkew is tolerated on exp, iat and nbf.
	clockSkew = 5 * time.Minute

	requestTimeout = config.LINEAPIRequest
)

// Token kinds used as metric labels.
const (
	kindAccess = "access"
	kindID     = "id"
)

var supportedAlgs = []string{"RS256", "ES256"}

// Profile identifies a verified LINE user.
type Profile struct {
	UserID      string
	DisplayName string
}

// Config configures a Verifier.
type Config struct {
	// APIBaseURL defaults to DefaultAPIBaseURL.
	APIBaseURL string

	// ChannelID is the LINE Login channel of the LIFF app. When set, the
	// access token client_id and the ID token aud must match it.
	ChannelID string

	// VerifySignature checks ID token signatures against LINE's JWKS.
	// Only claims are checked when false.
	VerifySignature bool

	HTTPClient *http.Client
}

// Verifier checks LIFF tokens with the LINE platform. It is safe for concurrent use.
type Verifier struct {
	apiBase         string
	channelID       string
	verifySignature bool
	client          *http.Client
	jwks            *jwksCache
	logger          *logger.Logger
	metrics         *metrics.Metrics
}

// NewVerifier creates a Verifier. m may be nil.
func NewVerifier(cfg Config, log *logger.Logger, m *metrics.Metrics) *Verifier {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	log = log.WithModule("lineauth")

	return &Verifier{
		apiBase:         base,
		channelID:       cfg.ChannelID,
		verifySignature: cfg.VerifySignature,
		client:          client,
		logger:          log,
		metrics:         m,
		jwks: &jwksCache{
			url:     base + "/oauth2/v2.1/certs",
			client:  client,
			ttl:     config.JWKSCacheTTL,
			logger:  log,
			metrics: m,
			now:     time.Now,
		},
	}
}

// VerifyAccessToken validates a LIFF access token and returns the owner's profile.
//
// Errors match domerrors.ErrUnauthorized for rejected tokens and
// domerrors.ErrUpstreamUnavailable when LINE could not be reached.
func (v *Verifier) VerifyAccessToken(ctx context.Context, token string) (*Profile, error) {
	profile, err := v.verifyAccessToken(ctx, token)
	v.record(kindAccess, err)
	return profile, err
}

func (v *Verifier) verifyAccessToken(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty access token", domerrors.ErrUnauthorized)
	}

	var verify struct {
		ClientID  string `json:"client_id"`
		ExpiresIn int64  `json:"expires_in"`
		Scope     string `json:"scope"`
	}
	verifyURL := v.apiBase + "/oauth2/v2.1/verify?" + url.Values{"access_token": {token}}.Encode()
	if err := v.getJSON(ctx, "line-verify", verifyURL, "", &verify); err != nil {
		return nil, err
	}
	if verify.ClientID == "" {
		return nil, fmt.Errorf("%w: verify response has no client_id", domerrors.ErrUnauthorized)
	}
	if verify.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: access token expired", domerrors.ErrUnauthorized)
	}
	if v.channelID != "" && verify.ClientID != v.channelID {
		return nil, fmt.Errorf("%w: access token issued for another channel", domerrors.ErrUnauthorized)
	}

	var profile struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	}
	if err := v.getJSON(ctx, "line-profile", v.apiBase+"/v2/profile", token, &profile); err != nil {
		return nil, err
	}
	if profile.UserID == "" {
		return nil, fmt.Errorf("%w: profile has no user id", domerrors.ErrUnauthorized)
	}
	return &Profile{UserID: profile.UserID, DisplayName: profile.DisplayName}, nil
}

// getJSON performs a GET and decodes a 200 response into out. Non-200
// responses are treated as a rejected token.
func (v *Verifier) getJSON(ctx context.Context, service, rawURL, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", service, err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return domerrors.NewUpstreamError(service, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %w", domerrors.ErrUnauthorized,
			domerrors.NewUpstreamError(service, resp.StatusCode, errors.New(http.StatusText(resp.StatusCode))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", domerrors.ErrUnauthorized, service, err)
	}
	return nil
}

type idTokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// VerifyIDToken validates a LIFF ID token and returns the user it was issued to.
// Error classification matches VerifyAccessToken.
func (v *Verifier) VerifyIDToken(ctx context.Context, token string) (*Profile, error) {
	profile, err := v.verifyIDToken(ctx, token)
	v.record(kindID, err)
	return profile, err
}

func (v *Verifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(supportedAlgs),
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	}
	if v.channelID != "" {
		opts = append(opts, jwt.WithAudience(v.channelID))
	}
	return opts
}

func (v *Verifier) verifyIDToken(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty ID token", domerrors.ErrUnauthorized)
	}

	claims := &idTokenClaims{}
	if v.verifySignature {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("%w: missing kid", domerrors.ErrUnauthorized)
			}
			return v.jwks.key(ctx, kid)
		}, v.parserOptions()...)
		if err != nil {
			if errors.Is(err, domerrors.ErrUpstreamUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", domerrors.ErrUnauthorized, err)
		}
	} else {
		parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domerrors.ErrUnauthorized, err)
		}
		alg, _ := parsed.Header["alg"].(string)
		if alg != "RS256" && alg != "ES256" {
			return nil, fmt.Errorf("%w: unsupported algorithm %q", domerrors.ErrUnauthorized, alg)
		}
		if err := jwt.NewValidator(v.parserOptions()...).Validate(claims); err != nil {
			return nil, fmt.Errorf("%w: %w", domerrors.ErrUnauthorized, err)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: ID token has no subject", domerrors.ErrUnauthorized)
	}
	return &Profile{UserID: claims.Subject, DisplayName: claims.Name}, nil
}

func (v *Verifier) record(kind string, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, domerrors.ErrUpstreamUnavailable):
		status = "unavailable"
		v.logger.WithError(err).Warn("LINE token verification unavailable", "kind", kind)
	default:
		status = "unauthorized"
		v.logger.WithError(err).Debug("LINE token rejected", "kind", kind)
	}
	if v.metrics != nil {
		v.metrics.RecordTokenVerification(kind, status)
	}
}
