package licensekit

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// ComputeProductIdentity derives the tamper-evident identity binding a
// license artifact to one product. The artifact's signature alone proves it
// was not altered, but not that it was issued for this product; embedding
// the hash of the product ID and public key as a signed attribute, and
// re-deriving it at validation time, proves the association without
// exposing the raw product ID relationship.
func ComputeProductIdentity(productID, publicKey string) string {
	sum := sha256.Sum256([]byte(productID + " " + publicKey))
	return fmt.Sprintf("%x", sum)
}

// ComputeAssemblyIdentity hashes the file at path so a license can be tied
// to one specific binary.
func ComputeAssemblyIdentity(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open assembly file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash assembly file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
