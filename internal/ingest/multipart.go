package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"visatrack/internal/api"
)

// FileFieldName is the multipart field the file bytes travel under. It
// must be the last field in the body; storage services stop reading the
// form once the file part starts.
const FileFieldName = "file"

// ProgressFunc observes transfer progress as a whole percentage,
// floor(bytesSent*100/bytesTotal), non-decreasing within one transfer.
type ProgressFunc func(percent int)

// Transfer posts the file to the negotiated storage destination. Every
// negotiated field is replayed verbatim, in issued order, before the
// file part. Any transport error or non-2xx response is
// ErrStorageUploadFailed with the storage service's detail attached.
func Transfer(ctx context.Context, client *http.Client, neg *api.UploadNegotiation, fileName string, file io.Reader, onProgress ProgressFunc) error {
	if client == nil {
		client = http.DefaultClient
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, field := range neg.Fields {
		if err := mw.WriteField(field.Name, field.Value); err != nil {
			return fmt.Errorf("%w: build form: %v", ErrStorageUploadFailed, err)
		}
	}
	part, err := mw.CreateFormFile(FileFieldName, fileName)
	if err != nil {
		return fmt.Errorf("%w: build form: %v", ErrStorageUploadFailed, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("%w: read file: %v", ErrStorageUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%w: build form: %v", ErrStorageUploadFailed, err)
	}

	reader := &progressReader{
		r:      bytes.NewReader(body.Bytes()),
		total:  int64(body.Len()),
		report: onProgress,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, neg.UploadURL, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = int64(body.Len())

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUploadFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = res.Status
		}
		return fmt.Errorf("%w: storage returned %d: %s", ErrStorageUploadFailed, res.StatusCode, msg)
	}
	return nil
}

// progressReader reports whole-percent progress as the request body is
// consumed by the transport. Repeated percentages are suppressed so the
// callback only ever sees increases.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	last   int
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.report != nil && p.total > 0 {
			pct := int(p.sent * 100 / p.total)
			if pct > 100 {
				pct = 100
			}
			if pct > p.last {
				p.last = pct
				p.report(pct)
			}
		}
	}
	return n, err
}
