package licensekit

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const msgHowToResolve = "Please contact your vendor's support."

// Validator checks signed license artifacts on the licensee side. The
// product ID and public key come from the application's own compiled-in
// constants, never from the artifact.
type Validator struct {
	productID  string
	publicKey  string
	binaryPath string
	now        func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithBinaryPath sets the path to the running binary for assembly-lock
// verification. Without it, assembly-locked licenses fail validation.
func WithBinaryPath(path string) ValidatorOption {
	return func(v *Validator) {
		v.binaryPath = path
	}
}

// NewValidator creates a validator for one product identity.
func NewValidator(productID, publicKey string, opts ...ValidatorOption) *Validator {
	v := &Validator{
		productID: productID,
		publicKey: publicKey,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateFile verifies the artifact at path and reconstructs its Record.
// Failures do not short-circuit: identity, signature, and expiry problems
// are all collected so the caller sees every reason at once. When the
// license is invalid the returned Record stays in its cleared default
// shape, ok is false, and messages holds the newline-joined failures.
// An invalid license is an expected outcome, never an error.
func (v *Validator) ValidateFile(path string) (record *Record, ok bool, messages string) {
	record = newRecord()

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return record, false, fmt.Sprintf("Unable to find license file %s.\n\n%s", path, msgHowToResolve)
	}
	if err != nil {
		return record, false, fmt.Sprintf("Unable to read license file %s.\n\n%s", path, msgHowToResolve)
	}

	var env artifactEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return record, false, fmt.Sprintf("License validation failure.\n%s", msgHowToResolve)
	}
	var payload licensePayload
	if err := json.Unmarshal(env.License, &payload); err != nil || env.Signature == "" {
		return record, false, fmt.Sprintf("License validation failure.\n%s", msgHowToResolve)
	}

	var failures []string

	// The product-identity attribute must match the hash derived from the
	// caller's own product ID and public key.
	identityLicense := pairValue(payload.Attributes, AttributeNameProductIdentity)
	if ComputeProductIdentity(v.productID, v.publicKey) != identityLicense {
		failures = append(failures,
			fmt.Sprintf("License file %s is not associated with this product.\n%s", path, msgHowToResolve))
	}

	// An assembly-identity attribute ties the license to one binary.
	locked := false
	if identityAssembly := pairValue(payload.Attributes, AttributeNameAssemblyIdentity); identityAssembly != "" {
		locked = true
		identityCaller, err := ComputeAssemblyIdentity(v.binaryPath)
		if err != nil || identityCaller != identityAssembly {
			failures = append(failures,
				fmt.Sprintf("License file %s is not associated with this instance of the product %s.\n%s",
					path, v.binaryPath, msgHowToResolve))
		}
	}

	if !v.verifySignature(env) {
		failures = append(failures,
			fmt.Sprintf("License validation failure.\n%s", msgHowToResolve))
	}

	// Expiry is enforced only when the artifact explicitly carries an
	// expiration-days value; an absent or empty attribute means the
	// license never expires.
	daysText := pairValue(payload.Attributes, AttributeNameExpirationDays)
	if daysText != "" && payload.Expiration != nil {
		expiry := payload.Expiration.UTC()
		if v.now().UTC().After(expiry) {
			failures = append(failures,
				fmt.Sprintf("License expired on %s.\n%s", expiry.Format("2006-01-02"), msgHowToResolve))
		}
		// Clock/tamper heuristic: the validating binary must not postdate
		// the license expiry.
		if v.binaryPath != "" {
			if info, err := os.Stat(v.binaryPath); err == nil && info.ModTime().UTC().After(expiry) {
				failures = append(failures,
					fmt.Sprintf("Product binary %s was built after the license expired.\n%s",
						v.binaryPath, msgHowToResolve))
			}
		}
	}

	if len(failures) > 0 {
		return record, false, strings.Join(failures, "\n")
	}

	v.populate(record, &payload, locked)
	return record, true, ""
}

func (v *Validator) verifySignature(env artifactEnvelope) bool {
	pubKey, err := base64.StdEncoding.DecodeString(v.publicKey)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return false
	}

	// The signature covers the compact payload bytes; the artifact on disk
	// is indented for readability, so compact before verifying.
	var payload bytes.Buffer
	if err := json.Compact(&payload, env.License); err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), payload.Bytes(), sig)
}

// populate fills the record from a verified payload, stripping the
// reserved names out of the exposed maps.
func (v *Validator) populate(record *Record, payload *licensePayload, locked bool) {
	record.Type = payload.Type
	record.Quantity = payload.Quantity
	record.Name = payload.Customer.Name
	record.Email = payload.Customer.Email
	record.Company = payload.Customer.Company

	record.Product = pairValue(payload.Features, FeatureNameProduct)
	record.Version = pairValue(payload.Features, FeatureNameVersion)
	record.PublishDate = pairValue(payload.Features, FeatureNamePublishDate)

	features := mapFromPairs(payload.Features)
	for name := range reservedFeatureNames {
		features.Remove(name)
	}
	record.ProductFeatures = features

	attributes := mapFromPairs(payload.Attributes)
	for name := range reservedAttributeNames {
		attributes.Remove(name)
	}
	record.LicenseAttributes = attributes

	record.ProductID = v.productID
	record.IsLockedToAssembly = locked
	record.PathAssembly = v.binaryPath

	if payload.Expiration != nil {
		record.ExpirationDateUTC = payload.Expiration.UTC()
		today := v.now().UTC().Truncate(24 * time.Hour)
		record.ExpirationDays = int(record.ExpirationDateUTC.Sub(today).Hours() / 24)
	} else {
		record.ExpirationDateUTC = NeverExpires
		record.ExpirationDays = 0
	}
}

// RevalidateFile validates an artifact with the store's own product ID and
// public key, then reports every difference between the store's current
// terms and the freshly parsed ones as informational messages. This is the
// licensor-side drift check between a keypair file and a previously issued
// artifact: the license can be valid while its properties have moved on.
// On a valid artifact the record's values are copied into the store. The
// license dirty flag is cleared either way.
func (s *Store) RevalidateFile(licensePath, binaryPath string) (ok bool, messages string) {
	defer s.clearLicenseDirty()

	validator := NewValidator(s.productID, s.keyPublic, WithBinaryPath(binaryPath))
	validator.now = s.now
	record, valid, failureText := validator.ValidateFile(licensePath)
	if !valid {
		return false, failureText
	}

	differences := s.diff(record, binaryPath)
	if len(differences) > 0 {
		messages = "The license is valid but the following properties differ from the keypair file:\n" +
			strings.Join(differences, "\n")
	}

	s.adopt(record, binaryPath)
	return true, messages
}

// diff lists human-readable field differences between the store and a
// validated record. String fields are only compared when the store holds a
// value; an empty store field is "not set yet", not a difference.
func (s *Store) diff(record *Record, binaryPath string) []string {
	var d []string
	add := func(format string, args ...any) {
		d = append(d, fmt.Sprintf(format, args...))
	}

	if s.productID != "" && s.productID != record.ProductID {
		add("Product ID: Current = %s, New = %s", s.productID, record.ProductID)
	}
	if s.pathAssembly != "" && s.pathAssembly != binaryPath {
		add("Assembly path: Current = %s, New = %s", s.pathAssembly, binaryPath)
	}
	if s.isLockedToAssembly != record.IsLockedToAssembly {
		add("Locked to assembly: Current = %t, New = %t", s.isLockedToAssembly, record.IsLockedToAssembly)
	}
	if s.product != "" && s.product != record.Product {
		add("Product: Current = %s, New = %s", s.product, record.Product)
	}
	if s.version != "" && s.version != record.Version {
		add("Version: Current = %s, New = %s", s.version, record.Version)
	}
	if s.publishDate != "" && s.publishDate != record.PublishDate {
		add("Publish date: Current = %s, New = %s", s.publishDate, record.PublishDate)
	}
	if s.licenseType != record.Type {
		add("Type: Current = %s, New = %s", s.licenseType, record.Type)
	}
	if !s.expirationDateUTC.Equal(record.ExpirationDateUTC) {
		add("Expiration date: Current = %s, New = %s",
			formatExpiry(s.expirationDateUTC), formatExpiry(record.ExpirationDateUTC))
	}
	if s.expirationDays != record.ExpirationDays {
		add("Expiration days: Current = %d, New = %d", s.expirationDays, record.ExpirationDays)
	}
	if s.quantity != record.Quantity {
		add("Quantity: Current = %d, New = %d", s.quantity, record.Quantity)
	}
	if s.name != "" && s.name != record.Name {
		add("Name: Current = %s, New = %s", s.name, record.Name)
	}
	if s.email != "" && s.email != record.Email {
		add("Email: Current = %s, New = %s", s.email, record.Email)
	}
	if s.company != "" && s.company != record.Company {
		add("Company: Current = %s, New = %s", s.company, record.Company)
	}

	for key, value := range s.productFeatures {
		newValue, ok := record.ProductFeatures[key]
		if !ok {
			add("Product feature %q: Current = %s, New = not present", key, value)
		} else if newValue != value {
			add("Product feature %q: Current = %s, New = %s", key, value, newValue)
		}
	}
	for key, value := range record.ProductFeatures {
		if !s.productFeatures.Has(key) {
			add("Product feature %q: Current = not present, New = %s", key, value)
		}
	}

	for key, value := range s.licenseAttributes {
		newValue, ok := record.LicenseAttributes[key]
		if !ok {
			add("License attribute %q: Current = %s, New = not present", key, value)
		} else if newValue != value {
			add("License attribute %q: Current = %s, New = %s", key, value, newValue)
		}
	}
	for key, value := range record.LicenseAttributes {
		if !s.licenseAttributes.Has(key) {
			add("License attribute %q: Current = not present, New = %s", key, value)
		}
	}

	return d
}

// adopt copies a validated record's values into the store through the
// change-tracking setters: any term replaced by the artifact leaves the
// keypair file flagged for re-saving. RevalidateFile clears only the
// license flag afterwards.
func (s *Store) adopt(record *Record, binaryPath string) {
	s.SetProductID(record.ProductID)
	s.SetPathAssembly(binaryPath)
	s.SetLockedToAssembly(record.IsLockedToAssembly)
	s.SetProduct(record.Product)
	s.SetVersion(record.Version)

	// The artifact's publish date and maps are authoritative here; reserved
	// names were already stripped during validation, so the setter-level
	// checks do not apply.
	if s.publishDate != record.PublishDate {
		s.publishDate = record.PublishDate
		s.markDirty()
	}
	if !s.productFeatures.Equal(record.ProductFeatures) {
		s.productFeatures = record.ProductFeatures.Clone()
		s.markDirty()
	}
	if !s.licenseAttributes.Equal(record.LicenseAttributes) {
		s.licenseAttributes = record.LicenseAttributes.Clone()
		s.markDirty()
	}

	s.SetLicenseType(record.Type)
	s.SetExpirationDateUTC(record.ExpirationDateUTC)
	s.setExpirationDaysOnly(record.ExpirationDays)
	s.SetQuantity(record.Quantity)
	s.SetName(record.Name)
	s.SetEmail(record.Email)
	s.SetCompany(record.Company)
}

func formatExpiry(t time.Time) string {
	if t.Equal(NeverExpires) {
		return "None"
	}
	return t.Format("2006-01-02")
}
