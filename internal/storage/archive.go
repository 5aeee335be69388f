// Package storage keeps copies of generated exports outside the database.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/lshigami/formresponses/config"
	"github.com/rs/zerolog/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Archiver interface {
	// Archive stores an export and returns where it went. An empty location
	// means nothing was stored.
	Archive(ctx context.Context, formID int, data []byte) (string, error)
}

// NewArchiver returns an S3 archiver when a bucket is configured.
func NewArchiver(cfg *config.Config) (Archiver, error) {
	if cfg.Export.S3Bucket == "" {
		return NopArchiver{}, nil
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Export.S3Region)})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	log.Info().Str("bucket", cfg.Export.S3Bucket).Str("prefix", cfg.Export.S3Prefix).Msg("Export archiving to S3 enabled")
	return &S3Archiver{
		Uploader: s3manager.NewUploader(sess),
		Bucket:   cfg.Export.S3Bucket,
		Prefix:   cfg.Export.S3Prefix,
		Now:      time.Now,
	}, nil
}

type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, int, []byte) (string, error) { return "", nil }

type S3Archiver struct {
	Uploader s3manageriface.UploaderAPI
	Bucket   string
	Prefix   string
	Now      func() time.Time
}

// Key is where an export taken at t is stored.
func (a *S3Archiver) Key(formID int, t time.Time) string {
	prefix := a.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%sform_%d/%s.xlsx", prefix, formID, t.UTC().Format("2006-01-02T15-04-05"))
}

func (a *S3Archiver) Archive(ctx context.Context, formID int, data []byte) (string, error) {
	key := a.Key(formID, a.Now())
	out, err := a.Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload %q to %q: %w", key, a.Bucket, err)
	}
	return out.Location, nil
}
