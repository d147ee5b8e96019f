package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "proyectos/1/plano.ifc", strings.NewReader("IFC"), 3, "application/octet-stream"))

	rc, err := store.Open(ctx, "proyectos/1/plano.ifc")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "IFC", string(body))

	require.NoError(t, store.Delete(ctx, "proyectos/1/plano.ifc"))
	_, err = store.Open(ctx, "proyectos/1/plano.ifc")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	err = store.Save(context.Background(), "../etc/passwd", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

type s3Stub struct {
	s3iface.S3API
	objects map[string][]byte
}

func (s *s3Stub) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.objects[aws.StringValue(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (s *s3Stub) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := s.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3StorageRoundTrip(t *testing.T) {
	stub := &s3Stub{objects: map[string][]byte{}}
	store := NewS3StorageWithClient("planos", stub)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "proyectos/2/a.dwg", strings.NewReader("DWG"), 3, ""))
	rc, err := store.Open(ctx, "proyectos/2/a.dwg")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "DWG", string(body))

	_, err = store.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
