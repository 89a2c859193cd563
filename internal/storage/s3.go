package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads clips under audio/ and returns their CDN URL.
type S3Store struct {
	client     PutObjectAPI
	bucket     string
	cdnBaseURL string // e.g. "https://audio.apresai.dev"
	now        func() time.Time
	newID      func() string
}

func NewS3Store(client PutObjectAPI, bucket, cdnBaseURL string, newID func() string) *S3Store {
	return &S3Store{
		client:     client,
		bucket:     bucket,
		cdnBaseURL: strings.TrimRight(cdnBaseURL, "/"),
		now:        time.Now,
		newID:      newID,
	}
}

// Key returns the object key for a clip. The id keeps keys unique when
// several clips land in the same second.
func (s *S3Store) Key(v voice.ID, f audio.Format, prefix, id string) string {
	name := FileName(prefix, v, f, s.now())
	if id != "" {
		name = strings.TrimSuffix(name, "."+string(f)) + "_" + SafeFilename(id) + "." + string(f)
	}
	return "audio/" + name
}

func (s *S3Store) Store(ctx context.Context, data []byte, v voice.ID, f audio.Format, prefix string) (string, error) {
	var id string
	if s.newID != nil {
		id = s.newID()
	}
	key := s.Key(v, f, prefix, id)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(f.MIMEType()),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	if s.cdnBaseURL == "" {
		return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}
	return s.cdnBaseURL + "/" + key, nil
}
