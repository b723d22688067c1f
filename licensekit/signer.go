package licensekit

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// validateForSigning checks that every field required to build an artifact
// is present and in range. The first problem is reported as a FieldError.
func (s *Store) validateForSigning() error {
	switch {
	case s.passphrase == "":
		return &FieldError{Field: "Passphrase", Reason: "must not be empty"}
	case s.keyPrivate == "":
		return &FieldError{Field: "PrivateKey", Reason: "must not be empty"}
	case s.keyPublic == "":
		return &FieldError{Field: "PublicKey", Reason: "must not be empty"}
	case s.id == "":
		return &FieldError{Field: "ID", Reason: "must not be empty"}
	case s.productID == "":
		return &FieldError{Field: "ProductID", Reason: "must not be empty"}
	case s.product == "":
		return &FieldError{Field: "Product", Reason: "must not be empty"}
	case s.version == "":
		return &FieldError{Field: "Version", Reason: "must not be empty"}
	case s.quantity < 1:
		return &FieldError{Field: "Quantity", Reason: "must be one or more"}
	case s.expirationDays < 0:
		return &FieldError{Field: "ExpirationDays", Reason: "must be zero (no expiry) or positive"}
	case s.name == "":
		return &FieldError{Field: "Name", Reason: "must not be empty"}
	case s.email == "":
		return &FieldError{Field: "Email", Reason: "must not be empty"}
	}
	return nil
}

// buildPayload assembles the rights payload: the caller's feature and
// attribute maps plus the reserved entries written only at signing time.
func (s *Store) buildPayload() (*licensePayload, error) {
	identityProduct := ComputeProductIdentity(s.productID, s.keyPublic)

	// Optionally tie the license to one specific binary.
	identityAssembly := ""
	if s.isLockedToAssembly && s.pathAssembly != "" {
		var err error
		identityAssembly, err = ComputeAssemblyIdentity(s.pathAssembly)
		if err != nil {
			return nil, err
		}
	}

	features := s.productFeatures.Clone()
	features[FeatureNameProduct] = s.product
	features[FeatureNameVersion] = s.version
	features[FeatureNamePublishDate] = s.publishDate

	attributes := s.licenseAttributes.Clone()
	attributes[AttributeNameProductIdentity] = identityProduct
	attributes[AttributeNameAssemblyIdentity] = identityAssembly
	if s.expirationDays == 0 {
		attributes[AttributeNameExpirationDays] = ""
	} else {
		attributes[AttributeNameExpirationDays] = strconv.Itoa(s.expirationDays)
	}

	payload := &licensePayload{
		ID:       s.id,
		Type:     s.licenseType,
		Quantity: s.quantity,
		Customer: customerPayload{
			Name:    s.name,
			Email:   s.email,
			Company: s.company,
		},
		Features:   pairsFromMap(features),
		Attributes: pairsFromMap(attributes),
	}
	if s.expirationDays > 0 {
		expiry := s.today().AddDate(0, 0, s.expirationDays)
		payload.Expiration = &expiry
	}
	return payload, nil
}

// SignFile builds the license payload, signs it with the passphrase-
// decrypted private key, and writes the clear-text artifact to path,
// overwriting any existing file. Overwrite protection is the caller's
// responsibility. On success the license dirty flag is cleared.
func (s *Store) SignFile(path string) error {
	if err := s.validateForSigning(); err != nil {
		return err
	}

	payload, err := s.buildPayload()
	if err != nil {
		return err
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal license payload: %w", err)
	}

	private, err := decryptPrivateKey(s.keyPrivate, s.passphrase)
	if err != nil {
		return err
	}
	signature := ed25519.Sign(private, rawPayload)

	env := artifactEnvelope{
		License:   rawPayload,
		Signature: base64.StdEncoding.EncodeToString(signature),
		PublicKey: s.keyPublic,
	}
	data, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal license file: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write license file: %w", err)
	}

	s.clearLicenseDirty()
	return nil
}
