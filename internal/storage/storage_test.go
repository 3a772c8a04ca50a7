package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
)

func TestLocal_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "/uploads/", "http://localhost:8080/")

	res, err := l.Put(context.Background(), strings.NewReader("%PDF"), PutInput{
		Filename:    "facture_orange_OM-1_20240305_140709.pdf",
		ContentType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "facture_orange_OM-1_20240305_140709.pdf", res.Key)
	assert.Equal(t, "http://localhost:8080/uploads/facture_orange_OM-1_20240305_140709.pdf", res.URL)

	data, err := os.ReadFile(filepath.Join(dir, res.Key))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	require.NoError(t, l.Delete(context.Background(), res.Key))
	require.NoError(t, l.Delete(context.Background(), res.Key), "deleting a missing file is not an error")
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "passwd", objectName("../../etc/passwd"))
	assert.Equal(t, "a_b.pdf", objectName("a b.pdf"))
	name := objectName("..")
	assert.NotEmpty(t, name)
	assert.NotContains(t, name, "/")
}

type fakeObjects struct {
	put *s3.PutObjectInput
	del *s3.DeleteObjectInput
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	_, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.del = in
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3_PutUsesPrefixAndPublicURL(t *testing.T) {
	api := &fakeObjects{}
	s := &S3{Client: api, Bucket: "invoices-bucket", Prefix: "/invoices/", PublicBaseURL: "https://cdn.example.sn"}

	res, err := s.Put(context.Background(), strings.NewReader("%PDF"), PutInput{Filename: "f.pdf", ContentType: "application/pdf", Size: 4})
	require.NoError(t, err)
	assert.Equal(t, "invoices/f.pdf", res.Key)
	assert.Equal(t, "https://cdn.example.sn/invoices/f.pdf", res.URL)
	assert.Equal(t, "invoices-bucket", *api.put.Bucket)
	assert.Equal(t, "application/pdf", *api.put.ContentType)
	assert.Equal(t, int64(4), *api.put.ContentLength)

	require.NoError(t, s.Delete(context.Background(), res.Key))
	assert.Equal(t, "invoices/f.pdf", *api.del.Key)
}

func TestFromConfig(t *testing.T) {
	res, err := FromConfig(context.Background(), config.Storage{Driver: "local", LocalDir: t.TempDir(), LocalURLPrefix: "/uploads"}, "http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "local", res.Driver)

	_, err = FromConfig(context.Background(), config.Storage{Driver: "s3"}, "")
	assert.ErrorContains(t, err, "S3 config missing")

	_, err = FromConfig(context.Background(), config.Storage{Driver: "ftp"}, "")
	assert.ErrorContains(t, err, "unknown STORAGE_DRIVER")
}
