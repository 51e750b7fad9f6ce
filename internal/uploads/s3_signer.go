package uploads

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"visatrack/internal/api"
	"visatrack/internal/documents"
)

// S3PostSigner issues presigned S3 POST policies. The uploaded object
// lands under the same prefixed key the S3 object store reads from.
type S3PostSigner struct {
	Presign *s3.PresignClient
	Bucket  string
	Prefix  string
}

// NewS3PostSigner builds a signer from the ambient AWS credentials.
func NewS3PostSigner(ctx context.Context, region, bucket, prefix string) (*S3PostSigner, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3PostSigner{
		Presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Bucket:  bucket,
		Prefix:  strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

// SignPost presigns a POST upload bound to the key, the content type
// when declared, and a content-length-range matching the service limit.
func (s *S3PostSigner) SignPost(ctx context.Context, storageKey, contentType string, maxBytes int64, expires time.Duration) (string, api.FormFields, error) {
	objectKey := storageKey
	if s.Prefix != "" {
		objectKey = s.Prefix + "/" + strings.TrimLeft(storageKey, "/")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(objectKey),
	}
	out, err := s.Presign.PresignPostObject(ctx, input, func(opts *s3.PresignPostOptions) {
		opts.Expires = expires
		opts.Conditions = append(opts.Conditions, []interface{}{"content-length-range", int64(1), maxBytes})
		if contentType != "" {
			opts.Conditions = append(opts.Conditions, []interface{}{"eq", "$Content-Type", contentType})
		}
	})
	if err != nil {
		return "", nil, fmt.Errorf("presign post bucket=%s key=%s: %w", s.Bucket, objectKey, err)
	}

	fields := api.FormFields{}
	if v, ok := out.Values["key"]; ok {
		fields = append(fields, api.FormField{Name: "key", Value: v})
	}
	if contentType != "" {
		fields = append(fields, api.FormField{Name: "Content-Type", Value: contentType})
	}
	rest := make([]string, 0, len(out.Values))
	for name := range out.Values {
		if name == "key" {
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		fields = append(fields, api.FormField{Name: name, Value: out.Values[name]})
	}

	return out.URL, fields, nil
}

var _ documents.PostSigner = (*S3PostSigner)(nil)
