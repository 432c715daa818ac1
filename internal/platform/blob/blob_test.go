package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/police-records/registry/internal/shared"
)

type fakeHead struct {
	objects map[string]bool
	err     error
	bucket  string
}

func (f *fakeHead) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	if f.err != nil {
		return nil, f.err
	}
	if f.objects[aws.ToString(in.Key)] {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &types.NotFound{}
}

func TestS3StoreExists(t *testing.T) {
	head := &fakeHead{objects: map[string]bool{"officers/42.jpg": true}}
	store := &S3Store{client: head, bucket: "photos"}
	ctx := context.Background()

	ok, err := store.Exists(ctx, "officers/42.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "photos", head.bucket)

	ok, err = store.Exists(ctx, "officers/missing.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3StoreSurfacesTransportErrors(t *testing.T) {
	store := &S3Store{client: &fakeHead{err: errors.New("timeout")}, bucket: "photos"}
	_, err := store.Exists(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("a.jpg")
	store.Put("b.jpg")
	for key, want := range map[string]bool{"a.jpg": true, "b.jpg": true, "c.jpg": false} {
		got, err := store.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestParseDriver(t *testing.T) {
	d, err := ParseDriver("S3")
	require.NoError(t, err)
	assert.Equal(t, DriverS3, d)

	d, err = ParseDriver("")
	require.NoError(t, err)
	assert.Equal(t, DriverNone, d)

	_, err = ParseDriver("gcs")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("crimes/7/a.jpg")

	require.NoError(t, Verify(ctx, store, "photo_key", "crimes/7/a.jpg"))
	err := Verify(ctx, store, "photo_key", "crimes/7/b.jpg")
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "photo_key")

	require.NoError(t, Verify(ctx, nil, "photo_key", "anything"))
}
