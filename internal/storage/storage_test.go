package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
)

const key = "ocr-results/ocr_output_2025-03-14.xlsx"

// exerciseGateway runs the shared optimistic-concurrency contract.
func exerciseGateway(t *testing.T, g Gateway) {
	t.Helper()
	ctx := context.Background()

	ok, err := g.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.Download(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	v1, err := g.Upload(ctx, key, []byte("one"), "")
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	_, err = g.Upload(ctx, key, []byte("dup"), "")
	assert.ErrorIs(t, err, ErrVersionConflict, "create must fail once the key exists")

	obj, err := g.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), obj.Body)
	assert.Equal(t, v1, obj.Version)

	v2, err := g.Upload(ctx, key, []byte("two"), v1)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = g.Upload(ctx, key, []byte("stale"), v1)
	assert.ErrorIs(t, err, ErrVersionConflict, "stale version must be rejected")

	_, err = g.Upload(ctx, key, []byte("blind"), AnyVersion)
	require.NoError(t, err)

	obj, err = g.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("blind"), obj.Body)
}

func TestMemoryGateway(t *testing.T) {
	m := NewMemory()
	exerciseGateway(t, m)

	calls := m.Calls()
	assert.Equal(t, 1, calls.Exists)
	assert.Equal(t, 3, calls.Download)
	assert.Equal(t, 5, calls.Upload)
	assert.Equal(t, 9, calls.Total())
	assert.Equal(t, []string{key}, m.Keys())
}

func TestMemoryDownloadIsACopy(t *testing.T) {
	m := NewMemory()
	_, err := m.Upload(context.Background(), key, []byte("abc"), "")
	require.NoError(t, err)

	obj, err := m.Download(context.Background(), key)
	require.NoError(t, err)
	obj.Body[0] = 'z'

	again, err := m.Download(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.Body)
}

func TestFSGateway(t *testing.T) {
	g, err := NewFS(t.TempDir(), nil)
	require.NoError(t, err)
	exerciseGateway(t, g)
}

func TestFSRejectsEscapingKeys(t *testing.T) {
	g, err := NewFS(t.TempDir(), nil)
	require.NoError(t, err)

	for _, k := range []string{"../x.xlsx", "/abs.xlsx", "a//b", "a/./b", ""} {
		_, err := g.Upload(context.Background(), k, []byte("x"), AnyVersion)
		assert.Error(t, err, k)
	}
}

func TestNewFSRequiresRoot(t *testing.T) {
	_, err := NewFS("", nil)
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	g, err := New(context.Background(), common.StoreConfig{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, g)

	g, err = New(context.Background(), common.StoreConfig{Backend: "fs", FSRoot: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FS{}, g)

	_, err = New(context.Background(), common.StoreConfig{Backend: "gcs"}, nil)
	assert.Error(t, err)
}

type fakeS3 struct {
	head   error
	get    *s3.GetObjectOutput
	getErr error
	put    error
	puts   []*s3.PutObjectInput
}

func (f *fakeS3) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.head != nil {
		return nil, f.head
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f.get, f.getErr
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if f.put != nil {
		return nil, f.put
	}
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-2"`)}, nil
}

func TestS3Exists(t *testing.T) {
	ok, err := NewS3(&fakeS3{}, "ocr-envelopes", nil).Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewS3(&fakeS3{head: &types.NotFound{}}, "ocr-envelopes", nil).Exists(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewS3(&fakeS3{head: &smithy.GenericAPIError{Code: "AccessDenied"}}, "ocr-envelopes", nil).Exists(context.Background(), key)
	assert.Error(t, err)
}

func TestS3Download(t *testing.T) {
	f := &fakeS3{get: &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader([]byte("xlsx"))),
		ETag: aws.String(`"etag-1"`),
	}}
	obj, err := NewS3(f, "ocr-envelopes", nil).Download(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), obj.Body)
	assert.Equal(t, `"etag-1"`, obj.Version)

	_, err = NewS3(&fakeS3{getErr: &types.NoSuchKey{}}, "ocr-envelopes", nil).Download(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3UploadPreconditions(t *testing.T) {
	f := &fakeS3{}
	g := NewS3(f, "ocr-envelopes", nil)
	ctx := context.Background()

	v, err := g.Upload(ctx, key, []byte("a"), "")
	require.NoError(t, err)
	assert.Equal(t, `"etag-2"`, v)

	_, err = g.Upload(ctx, key, []byte("b"), `"etag-1"`)
	require.NoError(t, err)

	_, err = g.Upload(ctx, key, []byte("c"), AnyVersion)
	require.NoError(t, err)

	require.Len(t, f.puts, 3)
	assert.Equal(t, "*", aws.ToString(f.puts[0].IfNoneMatch))
	assert.Nil(t, f.puts[0].IfMatch)
	assert.Equal(t, `"etag-1"`, aws.ToString(f.puts[1].IfMatch))
	assert.Nil(t, f.puts[1].IfNoneMatch)
	assert.Nil(t, f.puts[2].IfMatch)
	assert.Nil(t, f.puts[2].IfNoneMatch)
	assert.Equal(t, "ocr-envelopes", aws.ToString(f.puts[0].Bucket))
	assert.Equal(t, xlsxContentType, aws.ToString(f.puts[0].ContentType))
}

func TestS3UploadConflict(t *testing.T) {
	for _, code := range []string{"PreconditionFailed", "ConditionalRequestConflict"} {
		g := NewS3(&fakeS3{put: &smithy.GenericAPIError{Code: code}}, "ocr-envelopes", nil)
		_, err := g.Upload(context.Background(), key, []byte("a"), `"etag-1"`)
		assert.ErrorIs(t, err, ErrVersionConflict, code)
	}

	g := NewS3(&fakeS3{put: errors.New("connection reset")}, "ocr-envelopes", nil)
	_, err := g.Upload(context.Background(), key, []byte("a"), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVersionConflict)
}
