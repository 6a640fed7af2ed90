package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// The stores must satisfy the offload interface the data model expects.
var (
	_ types.BlobStore = (*MemoryStore)(nil)
	_ types.BlobStore = (*S3Store)(nil)
	_ types.BlobStore = (*GCSStore)(nil)
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k1", []byte("payload")))
	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.Equal(t, 1, store.Len())

	// Returned slices are copies; mutating them must not corrupt the store.
	got[0] = 'X'
	again, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), again)

	_, err = store.Get(ctx, "absent")
	require.ErrorIs(t, err, ErrBlobNotFound)

	require.Error(t, store.Put(ctx, "", []byte("x")))
}

func TestObjectKeyPrefixing(t *testing.T) {
	assert.Equal(t, "abc", objectKey("", "abc"))
	assert.Equal(t, "nexus/abc", objectKey("nexus", "abc"))
	assert.Equal(t, "nexus/abc", objectKey("nexus/", "abc"))
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func TestS3StoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}

	store, err := NewS3Store(ctx, S3Config{Bucket: "artifacts", Prefix: "nexus", Client: fake})
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "deadbeef", []byte(`{"v":1}`)))
	// Keys land under the configured prefix.
	assert.Contains(t, fake.objects, "nexus/deadbeef")

	got, err := store.Get(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), got)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrBlobNotFound)
}

func TestS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Client: &fakeS3{}})
	require.Error(t, err)
}

func TestGCSStoreRequiresBucket(t *testing.T) {
	_, err := NewGCSStore(context.Background(), GCSConfig{})
	require.Error(t, err)
}
