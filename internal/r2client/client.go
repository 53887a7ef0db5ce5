// Package r2client moves catalog snapshots in and out of Cloudflare R2 over
// the S3 API. Conditional puts back the publisher's lock object.
package r2client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var (
	ErrNotFound = errors.New("r2client: object not found")
	// ErrConflict means a conditional put lost: the key existed, or its ETag moved.
	ErrConflict = errors.New("r2client: precondition failed")
)

type Config struct {
	AccountID   string
	Endpoint    string // overrides the endpoint derived from AccountID
	AccessKeyID string
	SecretKey   string
	BucketName  string
}

func (c Config) endpoint() string {
	switch {
	case c.Endpoint != "":
		return c.Endpoint
	case c.AccountID != "":
		return "https://" + c.AccountID + ".r2.cloudflarestorage.com"
	default:
		return ""
	}
}

// ObjectAPI is the part of *s3.Client the snapshot flow needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ ObjectAPI = (*s3.Client)(nil)

// Client is bound to one bucket. ETags are returned without quotes.
type Client struct {
	api    ObjectAPI
	bucket string
}

// New signs requests with static R2 credentials; R2 only knows region "auto".
func New(ctx context.Context, cfg Config) (*Client, error) {
	endpoint := cfg.endpoint()
	if endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretKey == "" || cfg.BucketName == "" {
		return nil, errors.New("r2client: endpoint, credentials and bucket are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("r2client: load aws config: %w", err)
	}

	return NewWithAPI(s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), cfg.BucketName), nil
}

// NewWithAPI wraps any ObjectAPI, such as a MemoryBucket.
func NewWithAPI(api ObjectAPI, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// PutOption adjusts a single Put.
type PutOption func(*s3.PutObjectInput)

func ContentType(ct string) PutOption {
	return func(in *s3.PutObjectInput) { in.ContentType = aws.String(ct) }
}

// IfAbsent makes Put fail with ErrConflict when key already exists.
func IfAbsent() PutOption {
	return func(in *s3.PutObjectInput) { in.IfNoneMatch = aws.String("*") }
}

// IfMatch makes Put fail with ErrConflict unless key still has etag.
func IfMatch(etag string) PutOption {
	return func(in *s3.PutObjectInput) { in.IfMatch = aws.String(`"` + etag + `"`) }
}

// Put writes body to key and returns the new ETag.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, opts ...PutOption) (string, error) {
	in := &s3.PutObjectInput{Bucket: &c.bucket, Key: &key, Body: body}
	for _, opt := range opts {
		opt(in)
	}
	out, err := c.api.PutObject(ctx, in)
	if err != nil {
		return "", classify("put", key, err)
	}
	return unquote(out.ETag), nil
}

// Get opens key for reading. The caller closes the body.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: &c.bucket, Key: &key})
	if err != nil {
		return nil, "", classify("get", key, err)
	}
	return out.Body, unquote(out.ETag), nil
}

// Stat returns the ETag of key without transferring it.
func (c *Client) Stat(ctx context.Context, key string) (string, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &c.bucket, Key: &key})
	if err != nil {
		return "", classify("stat", key, err)
	}
	return unquote(out.ETag), nil
}

// Delete removes key. A key that is already gone is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &c.bucket, Key: &key})
	if err = classify("delete", key, err); errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func unquote(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

// classify maps S3 failures onto ErrNotFound and ErrConflict. R2 sometimes
// answers HEAD with a bare status and no error code, so both are checked.
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var code string
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	var status int
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	switch {
	case code == "NoSuchKey" || code == "NotFound" || status == http.StatusNotFound:
		return ErrNotFound
	case code == "PreconditionFailed" || status == http.StatusPreconditionFailed:
		return ErrConflict
	default:
		return fmt.Errorf("r2client: %s %q: %w", op, key, err)
	}
}
