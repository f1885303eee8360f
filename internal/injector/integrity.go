// internal/injector/integrity.go
package injector

import (
	"bytes"

	"github.com/sheasmith19/ezapp/api/schemas"
)

// signatures maps media types with a fixed leading byte signature to that
// signature. Attaching data that fails its signature check would hand the
// host page a corrupt document, so a mismatch aborts the injection.
var signatures = map[string][]byte{
	mimePDF: []byte("%PDF-"),
}

// CheckIntegrity verifies the leading bytes when the negotiated type has a
// known signature. Types without one pass through unchecked.
func CheckIntegrity(mediaType string, data []byte) error {
	sig, ok := signatures[mediaType]
	if !ok {
		return nil
	}
	if len(data) < len(sig) || !bytes.Equal(data[:len(sig)], sig) {
		got := data
		if len(got) > len(sig) {
			got = got[:len(sig)]
		}
		return &schemas.IntegrityError{Expected: string(sig), Got: string(got)}
	}
	return nil
}
