// Package objectstore stores attachment files in an S3-compatible bucket
// and issues short-lived signed GET URLs for them.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// PathPrefix is the only key prefix the store reads or writes.
const PathPrefix = "notes/"

var (
	// ErrObjectNotFound is returned when the object behind a path is gone.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidPath is returned for keys outside PathPrefix.
	ErrInvalidPath = errors.New("invalid object path")
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		return c.HeadObject(ctx, in)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in)
	}
)

// Options configures the S3 connection.
type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

// S3Store talks to one bucket. It is safe for concurrent use.
type S3Store struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
}

// New builds the S3 clients once. Path-style addressing is used so MinIO
// works without wildcard DNS.
func New(ctx context.Context, opts Options) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		bucket:  opts.Bucket,
		client:  client,
		presign: newS3PresignClient(client),
	}, nil
}

func checkPath(path string) error {
	if !strings.HasPrefix(path, PathPrefix) || len(path) == len(PathPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nk)
}

// SignGetURL returns a GET URL for path valid for ttl. The object must
// exist: a deleted object yields ErrObjectNotFound rather than a URL that
// would only fail later in the browser.
func (s *S3Store) SignGetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if err := checkPath(path); err != nil {
		return "", err
	}

	if _, err := headObject(s.client, ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return "", err
	}

	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// Put uploads body under path.
func (s *S3Store) Put(ctx context.Context, path, contentType string, body io.Reader, size int64) error {
	if err := checkPath(path); err != nil {
		return err
	}

	_, err := putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		CacheControl:  aws.String("max-age=3600"),
	})
	return err
}

// Delete removes the object at path. Missing objects are not an error.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}

	_, err := deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Slug lower-cases name and replaces whitespace runs and path separators
// with "-".
func Slug(name string) string {
	s := whitespace.ReplaceAllString(strings.TrimSpace(name), "-")
	s = strings.NewReplacer("/", "-", `\`, "-").Replace(s)
	s = strings.ToLower(s)
	if s == "" || strings.Trim(s, ".") == "" {
		return "file"
	}
	return s
}

// ObjectPath is the storage key for a file uploaded to a note:
// notes/{noteID}/{unixMillis}-{slug}.
func ObjectPath(noteID, name string, now time.Time) string {
	return fmt.Sprintf("%s%s/%d-%s", PathPrefix, noteID, now.UnixMilli(), Slug(name))
}
