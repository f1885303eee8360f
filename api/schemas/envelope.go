// api/schemas/envelope.go
package schemas

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// TransferEnvelope carries a fetched document across the context boundary.
// The body rides as base64 because the messaging transport is text only.
// It lives for exactly one upload command; the background never caches it.
type TransferEnvelope struct {
	Base64Body  string `json:"base64Body"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}

// NewTransferEnvelope encodes raw bytes into a transportable envelope.
func NewTransferEnvelope(body []byte, contentType, filename string) TransferEnvelope {
	return TransferEnvelope{
		Base64Body:  base64.StdEncoding.EncodeToString(body),
		ContentType: contentType,
		Filename:    filename,
	}
}

// Decode recovers the raw document bytes. A zero-length body decodes to an
// empty, non-nil slice so callers can treat it uniformly.
func (e TransferEnvelope) Decode() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Base64Body)
	if err != nil {
		return nil, fmt.Errorf("transfer envelope body is not valid base64: %w", err)
	}
	if raw == nil {
		raw = []byte{}
	}
	return raw, nil
}

// IsTextLike reports whether the declared content type is something the
// injector may paste into a text target rather than attach as a file.
func (e TransferEnvelope) IsTextLike() bool {
	ct := strings.ToLower(e.ContentType)
	return strings.Contains(ct, "text") || strings.Contains(ct, "json")
}

// IsMarkup reports whether the declared content type is HTML. A download
// that comes back as HTML is an error page wearing a document's clothes.
func (e TransferEnvelope) IsMarkup() bool {
	return strings.Contains(strings.ToLower(e.ContentType), "text/html")
}
