// Package document turns an inbound payload into a validated, immutable Document.
package document

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/envelope-ocr/constants"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
)

// Document is a decoded upload with its inferred extension.
type Document struct {
	data        []byte
	filename    string
	contentType string
	ext         string
}

func (d Document) Data() []byte        { return d.data }
func (d Document) Filename() string    { return d.filename }
func (d Document) ContentType() string { return d.contentType }

// Ext is the lowercased extension including the dot, e.g. ".pdf".
func (d Document) Ext() string { return d.ext }

// Format is constants.PDF or constants.IMAGE.
func (d Document) Format() string { return constants.MapExtToFormat(d.ext) }

// Size is the decoded payload length.
func (d Document) Size() int { return len(d.data) }

// Input is the raw, transport-neutral payload before validation.
type Input struct {
	Filename    string
	ContentType string
	Body        []byte
	Base64      bool
}

// New validates in and builds a Document. The size bound applies to the body as
// received, before any decoding.
func New(in Input, maxBytes int64) (Document, error) {
	if maxBytes > 0 && int64(len(in.Body)) > maxBytes {
		return Document{}, common.NewKindError(common.KindTooLarge,
			fmt.Sprintf("body is %d bytes, limit is %d", len(in.Body), maxBytes), nil)
	}

	data := append([]byte(nil), in.Body...)
	if in.Base64 {
		decoded, err := decodeBase64(in.Body)
		if err != nil {
			return Document{}, common.NewKindError(common.KindInvalidInput, "body is not valid base64", err)
		}
		data = decoded
	}
	if len(data) == 0 {
		return Document{}, common.NewKindError(common.KindInvalidInput, "body is empty", nil)
	}

	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		filename = constants.DefaultFilename
	}
	ext, err := InferExt(filename, in.ContentType)
	if err != nil {
		return Document{}, err
	}

	return Document{
		data:        data,
		filename:    filename,
		contentType: in.ContentType,
		ext:         ext,
	}, nil
}

// InferExt returns the filename's extension, or one derived from contentType
// when the filename has none or only the placeholder extension.
func InferExt(filename, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == constants.PlaceholderExt {
		ext = constants.ExtFromContentType(contentType)
	}
	if ext == "" {
		return "", common.NewKindError(common.KindInvalidInput,
			fmt.Sprintf("cannot determine file type from filename %q and content type %q", filename, contentType), nil)
	}
	return ext, nil
}

func decodeBase64(b []byte) ([]byte, error) {
	s := strings.TrimSpace(string(b))
	if out, err := base64.StdEncoding.DecodeString(s); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
