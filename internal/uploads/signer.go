// Package uploads mints and checks the credentials that let a client
// deliver a file straight to object storage, and receives those
// deliveries when objects live on local disk.
package uploads

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"visatrack/internal/api"
	"visatrack/internal/documents"
)

// receivePath is where the local storage endpoint listens; signed upload
// URLs point at it.
const receivePath = "/storage/objects"

// Form field names of a locally signed upload policy.
const (
	fieldKey         = "key"
	fieldContentType = "content-type"
	fieldMaxSize     = "x-vt-max-size"
	fieldExpires     = "x-vt-expires"
	fieldSignature   = "x-vt-signature"
)

var (
	ErrCredentialInvalid = errors.New("upload credential is invalid")
	ErrCredentialExpired = errors.New("upload credential has expired")
)

// LocalSigner signs upload policies with an HMAC secret shared between
// the API and the storage endpoint. It stands in for S3 POST policies
// when objects are kept on local disk.
type LocalSigner struct {
	Secret  string
	BaseURL string
	Now     func() time.Time
}

func (s *LocalSigner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SignPost issues the form fields a client must replay to the storage
// endpoint, bound to the destination key, content type, size limit and
// an expiry instant.
func (s *LocalSigner) SignPost(ctx context.Context, storageKey, contentType string, maxBytes int64, expires time.Duration) (string, api.FormFields, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return "", nil, fmt.Errorf("uploads: signing secret is not configured")
	}
	if storageKey == "" {
		return "", nil, fmt.Errorf("uploads: storage key is required")
	}
	if maxBytes <= 0 {
		return "", nil, fmt.Errorf("uploads: max bytes must be positive")
	}

	expiresAt := s.now().Add(expires).Unix()
	fields := api.FormFields{{Name: fieldKey, Value: storageKey}}
	if contentType != "" {
		fields = append(fields, api.FormField{Name: fieldContentType, Value: contentType})
	}
	fields = append(fields,
		api.FormField{Name: fieldMaxSize, Value: strconv.FormatInt(maxBytes, 10)},
		api.FormField{Name: fieldExpires, Value: strconv.FormatInt(expiresAt, 10)},
		api.FormField{Name: fieldSignature, Value: s.signature(storageKey, contentType, maxBytes, expiresAt)},
	)

	return strings.TrimRight(s.BaseURL, "/") + receivePath, fields, nil
}

// SignedPolicy is the authenticated content of a replayed upload form.
type SignedPolicy struct {
	Key         string
	ContentType string
	MaxBytes    int64
	ExpiresAt   time.Time
}

// Verify authenticates a replayed form and returns the policy it was
// signed for. The signature check runs before the expiry check so a
// forged form is never reported as merely expired.
func (s *LocalSigner) Verify(form map[string]string) (SignedPolicy, error) {
	key := form[fieldKey]
	if key == "" {
		return SignedPolicy{}, ErrCredentialInvalid
	}
	maxBytes, err := strconv.ParseInt(form[fieldMaxSize], 10, 64)
	if err != nil || maxBytes <= 0 {
		return SignedPolicy{}, ErrCredentialInvalid
	}
	expires, err := strconv.ParseInt(form[fieldExpires], 10, 64)
	if err != nil {
		return SignedPolicy{}, ErrCredentialInvalid
	}
	contentType := form[fieldContentType]

	want := s.signature(key, contentType, maxBytes, expires)
	if !hmac.Equal([]byte(want), []byte(form[fieldSignature])) {
		return SignedPolicy{}, ErrCredentialInvalid
	}
	if s.now().Unix() > expires {
		return SignedPolicy{}, ErrCredentialExpired
	}

	return SignedPolicy{
		Key:         key,
		ContentType: contentType,
		MaxBytes:    maxBytes,
		ExpiresAt:   time.Unix(expires, 0).UTC(),
	}, nil
}

func (s *LocalSigner) signature(key, contentType string, maxBytes, expires int64) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	fmt.Fprintf(mac, "%s\n%s\n%d\n%d", key, contentType, maxBytes, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ documents.PostSigner = (*LocalSigner)(nil)
