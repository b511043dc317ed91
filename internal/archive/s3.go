package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores uploaded label images in an S3 bucket.
type S3Archive struct {
	s3     objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archive constructs an archive writing under prefix in bucket.
func NewS3Archive(client objectPutter, bucket, prefix string) *S3Archive {
	return &S3Archive{
		s3:     client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Store uploads one image and returns its s3:// URI.
func (a *S3Archive) Store(ctx context.Context, owner, filename, contentType string, data []byte) (string, error) {
	key := a.objectKey(owner, filename)
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"owner":             owner,
			"original-filename": filename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to put label image to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

func (a *S3Archive) objectKey(owner, filename string) string {
	owner = strings.Trim(strings.ReplaceAll(strings.TrimSpace(owner), "/", "_"), ".")
	if owner == "" {
		owner = "anonymous"
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	name := uuid.NewString() + ext
	day := a.now().UTC().Format("2006/01/02")
	return path.Join(a.prefix, owner, day, name)
}
