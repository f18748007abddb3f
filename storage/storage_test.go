package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"a", "b.png"}, "a/b.png"},
		{[]string{"/a/", "b"}, "a/b"},
		{[]string{"metrics/offloaded_data/", "0.txt"}, "metrics/offloaded_data/0.txt"},
		{[]string{"", "x"}, "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Join(tt.parts...))
	}
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	p, err := NewLocalProvider(base, "http://cdn")
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())

	require.NoError(t, p.Put(ctx, "out/a/1.txt", strings.NewReader("hello")))
	data, err := os.ReadFile(filepath.Join(base, "out", "a", "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	ok, err := p.Exists(ctx, "out/a/1.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "http://cdn/out/a/1.txt", p.URL("out/a/1.txt"))

	require.NoError(t, p.DeletePrefix(ctx, "out"))
	ok, err = p.Exists(ctx, "out/a/1.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := os.Stat(filepath.Join(base, "out"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalProvider_RefusesRoot(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir(), "")
	require.NoError(t, err)
	assert.Error(t, p.DeletePrefix(context.Background(), ""))
}

func TestLocalProvider_CancelledContext(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Put(ctx, "x", strings.NewReader("x")), context.Canceled)
}

func TestNew(t *testing.T) {
	p, err := New(Config{Type: TypeLocal, Local: LocalConfig{BasePath: t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())

	_, err = New(Config{Type: "s3"})
	assert.Error(t, err)

	_, err = New(Config{Type: TypeOSS})
	assert.Error(t, err)
}

type fakeBucket struct {
	objects map[string][]byte
	deletes int
}

func (b *fakeBucket) PutObject(key string, r io.Reader, _ ...oss.Option) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *fakeBucket) IsObjectExist(key string, _ ...oss.Option) (bool, error) {
	_, ok := b.objects[key]
	return ok, nil
}

// ListObjectsV2 pages two keys at a time, ignoring options other than the
// prefix it is always asked for.
func (b *fakeBucket) ListObjectsV2(_ ...oss.Option) (oss.ListObjectsResultV2, error) {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, "run/") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := oss.ListObjectsResultV2{}
	if len(keys) > 2 {
		keys = keys[:2]
		res.IsTruncated = true
		res.NextContinuationToken = "next"
	}
	for _, k := range keys {
		res.Objects = append(res.Objects, oss.ObjectProperties{Key: k})
	}
	return res, nil
}

func (b *fakeBucket) DeleteObjects(keys []string, _ ...oss.Option) (oss.DeleteObjectsResult, error) {
	b.deletes++
	for _, k := range keys {
		delete(b.objects, k)
	}
	return oss.DeleteObjectsResult{DeletedObjects: keys}, nil
}

func TestOSSProvider(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBucket{objects: map[string][]byte{"keep/x": nil}}
	p := newOSSProvider(fb, OSSConfig{Endpoint: "oss-cn-hangzhou.aliyuncs.com", Bucket: "frames"})

	assert.Equal(t, "oss", p.Name())
	assert.Equal(t, "https://frames.oss-cn-hangzhou.aliyuncs.com/run/0.png", p.URL("/run/0.png"))

	for _, k := range []string{"run/0.png", "run/0.txt", "run/1.png", "run/1.txt", "run/metadata.out"} {
		require.NoError(t, p.Put(ctx, k, bytes.NewReader([]byte(k))))
	}
	ok, err := p.Exists(ctx, "run/0.png")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.DeletePrefix(ctx, "run/"))
	assert.Equal(t, 3, fb.deletes)
	assert.Len(t, fb.objects, 1)
	assert.Contains(t, fb.objects, "keep/x")

	assert.Error(t, p.DeletePrefix(ctx, "/"))
}

func TestOSSProvider_CustomDomain(t *testing.T) {
	p := newOSSProvider(&fakeBucket{}, OSSConfig{Bucket: "b", Endpoint: "e", Domain: "cdn.example.com/"})
	assert.Equal(t, "https://cdn.example.com/k", p.URL("k"))
}
