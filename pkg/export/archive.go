package export

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

// Archiver copies a finished CSV artifact to durable storage. Archival is
// best effort: local files remain the source of truth for downloads.
type Archiver interface {
	Archive(ctx context.Context, localPath string) error
}

type s3Archiver struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Archiver uploads finished exports to an S3 bucket under prefix.
// Credentials come from the usual AWS environment/instance chain.
func NewS3Archiver(bucket, prefix string) (Archiver, error) {
	s, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	return &s3Archiver{
		uploader: s3manager.NewUploader(s),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

func (a *s3Archiver) Archive(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := path.Join(a.prefix, filepath.Base(localPath))
	_, err = a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"key":    key,
	}).Info("archived export to s3")
	return nil
}
