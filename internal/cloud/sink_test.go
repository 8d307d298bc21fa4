package cloud

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBlob(t *testing.T) {
	assert.True(t, IsBlob("s3://bucket/out.json"))
	assert.True(t, IsBlob("file:///tmp/out.json"))
	assert.False(t, IsBlob("out.json"))
	assert.False(t, IsBlob("/data/out.json"))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		wantErr     bool
	}{
		{in: "s3://bucket/dir/out.json", bucket: "s3://bucket", key: "dir/out.json"},
		{in: "gs://bucket/out.json?x=1", bucket: "gs://bucket?x=1", key: "out.json"},
		{in: "mem://b/a.csv", bucket: "mem://b", key: "a.csv"},
		{in: "file:///tmp/run/out.json", bucket: "file:///tmp/run", key: "out.json"},
		{in: "s3://bucket", wantErr: true},
		{in: "s3://bucket/%zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, key, err := Split(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "a.nc"), Join("out", "a.nc"))
	assert.Equal(t, "s3://bucket/run/a.nc", Join("s3://bucket/run/", "a.nc"))
	assert.Equal(t, "mem://b/a.nc", Join("mem://b", "a.nc"))
}

func TestSinkMemBucket(t *testing.T) {
	ctx := context.Background()
	s := NewSink()
	defer func() { require.NoError(t, s.Close()) }()

	require.NoError(t, s.WriteFile(ctx, "mem://results/run/out.json", []byte(`{"a": 1}`)))
	w, err := s.Create(ctx, "mem://results/run/out.nc.temp.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("1,2\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := s.Bucket(ctx, "mem://results")
	require.NoError(t, err)
	data, err := b.ReadAll(ctx, "run/out.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, string(data))
	data, err = b.ReadAll(ctx, "run/out.nc.temp.csv")
	require.NoError(t, err)
	assert.Equal(t, "1,2\n", string(data))
}

func TestSinkFileBucketAndLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewSink()
	defer func() { require.NoError(t, s.Close()) }()

	require.NoError(t, s.WriteFile(ctx, "file://"+filepath.ToSlash(dir)+"/blob.json", []byte("blob")))
	data, err := os.ReadFile(filepath.Join(dir, "blob.json"))
	require.NoError(t, err)
	assert.Equal(t, "blob", string(data))

	local := filepath.Join(dir, "local.json")
	require.NoError(t, s.WriteFile(ctx, local, []byte("local")))
	data, err = os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestSinkErrors(t *testing.T) {
	ctx := context.Background()
	s := NewSink()

	_, err := s.Create(ctx, "nosuchscheme://bucket/key")
	require.ErrorContains(t, err, "opening bucket")
	_, err = s.Create(ctx, filepath.Join(t.TempDir(), "missing", "out.json"))
	require.Error(t, err)
	require.NoError(t, s.Close())
}
