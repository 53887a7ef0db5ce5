package lineauth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"

	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
)

// minForcedRefresh limits refetches triggered by unknown key ids.
const minForcedRefresh = time.Minute

// minRSABits rejects toy keys that go-jose would otherwise accept.
const minRSABits = 2048

// signingKey parses one JWKS entry with go-jose and keeps it only if it is a
// public RSA or P-256 key, the two kinds LINE signs ID tokens with.
func signingKey(raw json.RawMessage) (string, crypto.PublicKey, error) {
	var k jose.JSONWebKey
	if err := k.UnmarshalJSON(raw); err != nil {
		return "", nil, err
	}
	if !k.IsPublic() || !k.Valid() {
		return k.KeyID, nil, errors.New("not a valid public key")
	}

	switch pub := k.Key.(type) {
	case *rsa.PublicKey:
		if pub.N.BitLen() < minRSABits {
			return k.KeyID, nil, fmt.Errorf("RSA key too short: %d bits", pub.N.BitLen())
		}
		return k.KeyID, pub, nil
	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return k.KeyID, nil, fmt.Errorf("unsupported curve %s", pub.Curve.Params().Name)
		}
		return k.KeyID, pub, nil
	default:
		return k.KeyID, nil, fmt.Errorf("unsupported key type %T", k.Key)
	}
}

// jwksCache keeps LINE's ID token signing keys. Concurrent refreshes share one
// request. When a refresh fails, the previous keys keep being served.
type jwksCache struct {
	url     string
	client  *http.Client
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time

	group singleflight.Group
}

func (c *jwksCache) snapshot() (map[string]crypto.PublicKey, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys, c.fetchedAt
}

// key returns the public key for kid, refetching the set when it is stale
// or does not contain kid.
func (c *jwksCache) key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	keys, fetchedAt := c.snapshot()
	age := c.now().Sub(fetchedAt)

	if keys != nil && age < c.ttl {
		if k, ok := keys[kid]; ok {
			return k, nil
		}
		if age < minForcedRefresh {
			return nil, fmt.Errorf("%w: unknown key id %q", domerrors.ErrUnauthorized, kid)
		}
	}

	refreshed, err := c.refresh(ctx)
	switch {
	case err == nil:
		keys = refreshed
	case keys != nil:
		c.logger.WithError(err).WarnContext(ctx, "JWKS refresh failed, using stale keys")
	default:
		return nil, err
	}

	if k, ok := keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: unknown key id %q", domerrors.ErrUnauthorized, kid)
}

func (c *jwksCache) refresh(ctx context.Context) (map[string]crypto.PublicKey, error) {
	v, err, shared := c.group.Do("jwks", func() (any, error) {
		// Detached so one caller's cancellation does not fail the others.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
		defer cancel()

		keys, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.keys = keys
		c.fetchedAt = c.now()
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "JWKS refreshed", "keys", len(keys))
		return keys, nil
	})
	if shared && c.metrics != nil {
		c.metrics.RecordSingleflightDedup("lineauth")
	}
	if err != nil {
		return nil, err
	}
	return v.(map[string]crypto.PublicKey), nil
}

func (c *jwksCache) fetch(ctx context.Context) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build JWKS request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domerrors.NewUpstreamError("line-jwks", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Reported as unavailable, not unauthorized.
		return nil, domerrors.NewUpstreamError("line-jwks", 0, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	// Entries are parsed one by one so a single odd key does not void the set.
	var set struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, domerrors.NewUpstreamError("line-jwks", 0, fmt.Errorf("decode JWKS: %w", err))
	}

	keys := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, raw := range set.Keys {
		kid, pub, err := signingKey(raw)
		if err != nil {
			c.logger.WithError(err).WarnContext(ctx, "Skipping unusable JWK", "kid", kid)
			continue
		}
		if kid != "" {
			keys[kid] = pub
		}
	}
	if len(keys) == 0 {
		return nil, domerrors.NewUpstreamError("line-jwks", 0, errors.New("JWKS contains no usable keys"))
	}
	return keys, nil
}
