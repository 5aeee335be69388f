package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/lshigami/formresponses/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3manager.UploadInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), in, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3manager.UploadOutput{Location: "s3://" + *in.Bucket + "/" + *in.Key}, nil
}

func fixedNow() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }

func TestS3Archiver_Archive(t *testing.T) {
	up := &fakeUploader{}
	a := &S3Archiver{Uploader: up, Bucket: "exports-bucket", Prefix: "exports", Now: fixedNow}

	loc, err := a.Archive(context.Background(), 4, []byte("xlsx-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "s3://exports-bucket/exports/form_4/2024-03-09T14-05-00.xlsx", loc)
	assert.Equal(t, xlsxContentType, *up.input.ContentType)
	assert.Equal(t, []byte("xlsx-bytes"), up.body)
}

func TestS3Archiver_UploadError(t *testing.T) {
	a := &S3Archiver{Uploader: &fakeUploader{err: errors.New("denied")}, Bucket: "b", Now: fixedNow}
	_, err := a.Archive(context.Background(), 1, nil)
	assert.ErrorContains(t, err, "denied")
}

func TestNewArchiver_NoBucket(t *testing.T) {
	a, err := NewArchiver(&config.Config{})
	require.NoError(t, err)
	loc, err := a.Archive(context.Background(), 1, []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, loc)
}
