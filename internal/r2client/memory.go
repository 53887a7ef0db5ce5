package r2client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MemoryBucket is an in-memory ObjectAPI honoring If-Match and If-None-Match.
// It backs local runs without R2 and the tests of packages built on Client.
type MemoryBucket struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	version int
}

type memoryObject struct {
	data []byte
	etag string
}

var _ ObjectAPI = (*MemoryBucket)(nil)

// NewMemoryBucket returns an empty bucket.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string]memoryObject)}
}

// PutObject stores the body under the key.
func (b *MemoryBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var data []byte
	if in.Body != nil {
		var err error
		if data, err = io.ReadAll(in.Body); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := aws.ToString(in.Key)
	current, exists := b.objects[key]
	if aws.ToString(in.IfNoneMatch) == "*" && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	if in.IfMatch != nil && (!exists || `"`+current.etag+`"` != *in.IfMatch) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}

	b.version++
	obj := memoryObject{data: data, etag: fmt.Sprintf("v%d", b.version)}
	b.objects[key] = obj
	return &s3.PutObjectOutput{ETag: aws.String(`"` + obj.etag + `"`)}, nil
}

// GetObject returns a copy of the stored body.
func (b *MemoryBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))),
		ETag: aws.String(`"` + obj.etag + `"`),
	}, nil
}

// HeadObject returns the stored ETag.
func (b *MemoryBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(`"` + obj.etag + `"`)}, nil
}

// DeleteObject removes the key.
func (b *MemoryBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

// Len returns the number of stored objects.
func (b *MemoryBucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}
