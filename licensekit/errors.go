package licensekit

import (
	"errors"
	"fmt"
)

// Sentinel errors for attribute map access and mutation.
var (
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrReservedName      = errors.New("name is reserved")
)

// Sentinel errors for keypair file handling.
var (
	ErrKeypairFileMissing = errors.New("keypair file does not exist")
	ErrKeypairFileInvalid = errors.New("invalid keypair file format")
)

// Sentinel errors for signing and artifact verification.
var (
	// ErrPassphraseMismatch usually means the passphrase was changed
	// without regenerating the keypair.
	ErrPassphraseMismatch = errors.New("passphrase does not match encrypted private key")
	ErrArtifactInvalid    = errors.New("invalid license file format")
)

// Sentinel errors for override merging.
var (
	ErrExclusiveExpiration = errors.New("expiration days and expiration date are mutually exclusive")
)

// FieldError reports a required field that is missing or has an invalid
// value when building a license artifact.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}
