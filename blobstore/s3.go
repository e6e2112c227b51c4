package blobstore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"chat-sync/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes mimetype needs for detection.
const sniffLen = 3072

type S3Store struct {
	uploader *manager.Uploader
	bucket   string
}

type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewS3Store builds the uploader from the default credential chain;
// explicit keys in cfg override it.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{uploader: manager.NewUploader(client), bucket: cfg.Bucket}, nil
}

func (s *S3Store) Upload(ctx context.Context, userID, name string, size int64, r io.Reader, progress Progress) (domain.Attachment, error) {
	base := path.Base(name)
	key := fmt.Sprintf("%s/%d_%s", userID, time.Now().UnixNano(), base)

	// Peek the head for content-type detection, then let the buffered
	// reader replay it into the upload.
	buffered := bufio.NewReaderSize(r, sniffLen)
	head, err := buffered.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return domain.Attachment{}, err
	}
	contentType := mimetype.Detect(head).String()

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        newProgressReader(buffered, size, progress),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return domain.Attachment{}, err
	}

	return domain.Attachment{
		Name:        base,
		Size:        size,
		URL:         out.Location,
		ContentType: contentType,
	}, nil
}
