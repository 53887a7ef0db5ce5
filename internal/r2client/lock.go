package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// LockInfo is the body of a lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PublishLock keeps two catalog publishers from uploading at the same time.
// It is a JSON object in the bucket; expired locks may be taken over.
type PublishLock struct {
	client *Client
	key    string
	ttl    time.Duration
	owner  string
	etag   string
	now    func() time.Time
}

// NewPublishLock creates a lock stored at key with a random owner id.
func NewPublishLock(client *Client, key string, ttl time.Duration) *PublishLock {
	return &PublishLock{
		client: client,
		key:    key,
		ttl:    ttl,
		owner:  uuid.NewString(),
		now:    time.Now,
	}
}

// Owner returns the id written into the lock object.
func (l *PublishLock) Owner() string {
	return l.owner
}

// Acquire takes the lock. It returns false while another live owner holds it.
func (l *PublishLock) Acquire(ctx context.Context) (bool, error) {
	body, err := l.body()
	if err != nil {
		return false, err
	}

	etag, err := l.client.Put(ctx, l.key, body, ContentType("application/json"), IfAbsent())
	switch {
	case err == nil:
		l.etag = etag
		return true, nil
	case !errors.Is(err, ErrConflict):
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	held, etag, err := l.read(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if held != nil && l.now().Before(held.ExpiresAt) {
		return false, nil
	}
	if etag == "" {
		// Deleted between the two calls; let the caller retry on the next run.
		return false, nil
	}

	body, err = l.body()
	if err != nil {
		return false, err
	}
	newETag, err := l.client.Put(ctx, l.key, body, ContentType("application/json"), IfMatch(etag))
	switch {
	case errors.Is(err, ErrConflict):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("acquire lock: take over: %w", err)
	}
	l.etag = newETag
	return true, nil
}

// Release deletes the lock if this owner still holds it.
func (l *PublishLock) Release(ctx context.Context) error {
	held, _, err := l.read(ctx)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if held != nil && held.Owner != l.owner {
		return nil
	}
	l.etag = ""
	return l.client.Delete(ctx, l.key)
}

func (l *PublishLock) body() (io.Reader, error) {
	data, err := json.Marshal(LockInfo{Owner: l.owner, ExpiresAt: l.now().Add(l.ttl)})
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}
	return bytes.NewReader(data), nil
}

// read returns the current lock and its ETag. A missing lock is (nil, "").
// An unreadable lock body is returned as nil with its ETag so it can be replaced.
func (l *PublishLock) read(ctx context.Context) (*LockInfo, string, error) {
	rc, etag, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer rc.Close()

	var info LockInfo
	if err := json.NewDecoder(rc).Decode(&info); err != nil {
		return nil, etag, nil
	}
	return &info, etag, nil
}
