package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing. The version suffix allows the
// algorithm to change without colliding with stored fingerprints.
const (
	DomainLineMutation     = "stockline/line-mutation/v1"
	DomainDocumentDeletion = "stockline/document-deletion/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical encoding of a request under domain.
// Two requests carrying the same idempotency key must have equal
// fingerprints, otherwise the key is being reused for a different request.
func Fingerprint(domain string, request map[string]any) (string, error) {
	data, err := MarshalCanonical(request)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domain, data), nil
}
