package uploads

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestS3PostSignerIssuesOrderedFields(t *testing.T) {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	signer := &S3PostSigner{
		Presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Bucket:  "visatrack-docs",
		Prefix:  "documents",
	}

	url, fields, err := signer.SignPost(context.Background(), "user-1/doc-1/i20.pdf", "application/pdf", 10<<20, 5*time.Minute)
	if err != nil {
		t.Fatalf("SignPost: %v", err)
	}
	if !strings.Contains(url, "visatrack-docs") {
		t.Fatalf("url = %q, want the bucket in it", url)
	}

	if len(fields) < 5 {
		t.Fatalf("fields = %d, want the full policy set", len(fields))
	}
	if fields[0].Name != "key" || fields[0].Value != "documents/user-1/doc-1/i20.pdf" {
		t.Fatalf("first field = %+v, want the prefixed key", fields[0])
	}

	if ct, ok := fields.Get("Content-Type"); !ok || ct != "application/pdf" {
		t.Fatalf("Content-Type field = %q, %v", ct, ok)
	}

	sawSigned := false
	for _, f := range fields {
		if strings.HasPrefix(strings.ToLower(f.Name), "x-amz-") && f.Value != "" {
			sawSigned = true
		}
	}
	if !sawSigned {
		t.Fatal("expected SigV4 policy fields in the form")
	}
}

func TestS3PostSignerWithoutPrefix(t *testing.T) {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	signer := &S3PostSigner{
		Presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Bucket:  "visatrack-docs",
	}

	_, fields, err := signer.SignPost(context.Background(), "user-1/doc-1/i20.pdf", "", 1024, time.Minute)
	if err != nil {
		t.Fatalf("SignPost: %v", err)
	}
	if key, _ := fields.Get("key"); key != "user-1/doc-1/i20.pdf" {
		t.Fatalf("key = %q, want the bare storage key", key)
	}
	if _, ok := fields.Get("Content-Type"); ok {
		t.Fatal("Content-Type must not appear when none was declared")
	}
}
