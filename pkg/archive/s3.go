package archive

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	"github.com/tauraamui/xerror"
)

const contentType = "video/mp4"

type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) (string, error)
}

// S3Uploader writes recordings into a single bucket.
type S3Uploader struct {
	bucket   string
	uploader s3manageriface.UploaderAPI
}

func NewS3Uploader(cfg configdef.Archive) (*S3Uploader, error) {
	awsCfg := &aws.Config{}
	if len(cfg.Region) > 0 {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if len(cfg.Endpoint) > 0 {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if len(accessKey) > 0 && len(secretKey) > 0 {
		awsCfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN"))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, xerror.Errorf("unable to create aws session: %w", err)
	}

	return newS3Uploader(cfg.Bucket, s3manager.NewUploader(sess)), nil
}

func newS3Uploader(bucket string, uploader s3manageriface.UploaderAPI) *S3Uploader {
	return &S3Uploader{bucket: bucket, uploader: uploader}
}

// Upload stores body under key and returns the object location.
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", xerror.Errorf("unable to upload %s to bucket %s: %w", key, u.bucket, err)
	}
	return out.Location, nil
}
