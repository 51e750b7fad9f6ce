// Package extract pulls plain text out of uploaded document payloads.
// PDFs carry a text layer; images never do and are handed to the vision
// model instead, so this package also resolves which of the two paths a
// stored object belongs on.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// ExtractTextFromBytes extracts the text layer from an in-memory payload.
// Library used: github.com/ledongthuc/pdf.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch mimeType {
	case MimePDF:
		return extractPDF(data)
	default:
		return "", fmt.Errorf("unsupported mime type: %s", mimeType)
	}
}

// IsImage reports whether the mime type belongs on the vision path.
func IsImage(mimeType string) bool {
	return mimeType == MimeJPEG || mimeType == MimePNG
}

// DetectMime resolves a stored object's mime type. Magic bytes take
// precedence over the file extension; the stored record only keeps the
// name the uploader chose.
func DetectMime(fileName string, data []byte) string {
	if sniffed := sniffMagic(data); sniffed != "" {
		return sniffed
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".png":
		return MimePNG
	default:
		return ""
	}
}

var (
	magicPDF  = []byte("%PDF-")
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

func sniffMagic(data []byte) string {
	switch {
	case bytes.HasPrefix(data, magicPDF):
		return MimePDF
	case bytes.HasPrefix(data, magicJPEG):
		return MimeJPEG
	case bytes.HasPrefix(data, magicPNG):
		return MimePNG
	default:
		return ""
	}
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
