package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data     []byte
	metadata map[string]string
}

// fakeS3 keeps objects in memory. Only single-part uploads are supported,
// which is all the uploader issues for the small bodies used here.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	bucketErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.bucketErr != nil {
		return nil, f.bucketErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart upload not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart upload not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart upload not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Vault_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	v := newS3Vault("s3", "bucket", "catalogs", client)

	version, err := v.GetMetadataVersion(ctx, "cat-1", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("GetMetadataVersion() before put = %d, want 0", version)
	}

	if err := v.PutMetadata(ctx, "cat-1", "db", strings.NewReader("snapshot"), 8, 12); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}
	if _, ok := client.objects["catalogs/cat-1/db"]; !ok {
		t.Errorf("object not stored under prefixed key, have %v", client.objects)
	}

	version, err = v.GetMetadataVersion(ctx, "cat-1", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 12 {
		t.Errorf("GetMetadataVersion() = %d, want 12", version)
	}

	var buf bytes.Buffer
	if err := v.GetMetadata(ctx, "cat-1", "db", &buf); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if buf.String() != "snapshot" {
		t.Errorf("GetMetadata() = %q, want %q", buf.String(), "snapshot")
	}
}

func TestS3Vault_SizeMismatch(t *testing.T) {
	v := newS3Vault("s3", "bucket", "", newFakeS3())

	err := v.PutMetadata(context.Background(), "cat-1", "db", strings.NewReader("abc"), 10, 1)
	if err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Errorf("PutMetadata() error = %v, want size mismatch", err)
	}
}

func TestS3Vault_GetMetadata_NotFound(t *testing.T) {
	v := newS3Vault("s3", "bucket", "", newFakeS3())

	var buf bytes.Buffer
	err := v.GetMetadata(context.Background(), "cat-1", "db", &buf)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("GetMetadata() error = %v, want not found", err)
	}
}

func TestS3Vault_MissingVersionMetadata(t *testing.T) {
	client := newFakeS3()
	client.objects["cat-1/db"] = fakeObject{data: []byte("x")}
	v := newS3Vault("s3", "bucket", "", client)

	if _, err := v.GetMetadataVersion(context.Background(), "cat-1", "db"); err == nil {
		t.Error("GetMetadataVersion() expected error for object without version metadata")
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	client := newFakeS3()
	v := newS3Vault("s3", "bucket", "", client)

	if err := v.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	client.bucketErr = errors.New("access denied")
	if err := v.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error when bucket is not accessible")
	}
}
