// internal/injector/negotiate.go
package injector

import (
	"errors"
	"strings"
)

// The accept-attribute negotiation is a declarative bidirectional table:
// adding a format means adding one row, and the precedence rules below
// stay untouched.

const (
	mimePDF  = "application/pdf"
	mimeHTML = "text/html"
)

// mimeByExt is the single source of truth; extByMime is derived from it at
// init so the two directions can never drift apart.
var mimeByExt = map[string]string{
	".pdf":  mimePDF,
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".rtf":  "application/rtf",
	".txt":  "text/plain",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

var extByMime = func() map[string]string {
	m := make(map[string]string, len(mimeByExt))
	for ext, mime := range mimeByExt {
		m[mime] = ext
	}
	return m
}()

// ErrUnusableNegotiation reports an accept declaration the table cannot
// bridge to the source document at all.
var ErrUnusableNegotiation = errors.New("accept declaration is not usable with the fetched document type")

// Negotiated is the file identity the synthetic file will carry.
type Negotiated struct {
	MediaType string
	Ext       string
}

// Negotiate picks the outgoing media type and extension for a control.
//
// Precedence: when the control accepts PDF anywhere in its list, the broad
// document type wins outright, regardless of list order. Otherwise the
// first declared entry is honored, mapping between extension form and MIME
// form through the table. With no accept declaration the source type rides
// through, defaulting to PDF when the source gave no usable type.
func Negotiate(acceptAttr, sourceType string) (Negotiated, error) {
	n := Negotiated{MediaType: normalizeMediaType(sourceType), Ext: ""}
	if n.MediaType == "" {
		n.MediaType = mimePDF
	}
	if ext, ok := extByMime[n.MediaType]; ok {
		n.Ext = ext
	} else {
		n.Ext = ".pdf"
	}

	accepts := parseAcceptList(acceptAttr)
	if len(accepts) == 0 {
		return n, nil
	}

	for _, a := range accepts {
		if strings.Contains(a, "pdf") {
			return Negotiated{MediaType: mimePDF, Ext: ".pdf"}, nil
		}
	}

	first := accepts[0]
	switch {
	case strings.HasPrefix(first, "."):
		n.Ext = first
		if mime, ok := mimeByExt[first]; ok {
			n.MediaType = mime
		}
	case strings.Contains(first, "/"):
		n.MediaType = first
		if ext, ok := extByMime[first]; ok {
			n.Ext = ext
		}
	default:
		// Neither extension form nor MIME form; nothing to bridge on.
		return Negotiated{}, ErrUnusableNegotiation
	}
	return n, nil
}

// parseAcceptList splits and lowercases an accept attribute value.
func parseAcceptList(acceptAttr string) []string {
	var out []string
	for _, part := range strings.Split(acceptAttr, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeMediaType strips parameters like "; charset=utf-8".
func normalizeMediaType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return mediaType
}
