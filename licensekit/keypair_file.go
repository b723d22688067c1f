package licensekit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// keypairFileVersion is the current on-disk keypair format.
const keypairFileVersion = 2

// keypairFile is the versioned JSON document holding everything a licensor
// needs to re-issue licenses. It contains the plaintext passphrase and must
// never ship with a product.
type keypairFile struct {
	Version int    `json:"version"`
	ID      string `json:"id"`

	Secret struct {
		Passphrase string `json:"passphrase"`
		PrivateKey string `json:"private_key"`
	} `json:"secret"`

	Application struct {
		PublicKey string `json:"public_key"`
		ProductID string `json:"product_id"`
	} `json:"application"`

	Customer struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Company string `json:"company"`
	} `json:"customer"`

	Product struct {
		Name        string `json:"product_name"`
		Version     string `json:"version"`
		PublishDate string `json:"publish_date_utc"`
	} `json:"product"`

	ProductFeatures   []attrPair `json:"product_features"`
	LicenseAttributes []attrPair `json:"license_attributes"`

	License struct {
		Type           LicenseType `json:"standard_or_trial"`
		ExpirationDate string      `json:"expiration_date"`
		ExpirationDays int         `json:"expiration_days"`
		Quantity       int         `json:"quantity"`
	} `json:"license"`

	PathAssembly string `json:"path_assembly"`
}

// SaveKeypair writes the store to path as a versioned keypair document,
// overwriting unconditionally, and clears the keypair dirty flag. The file
// holds the plaintext passphrase; keep it secret.
func (s *Store) SaveKeypair(path string) error {
	var f keypairFile
	f.Version = keypairFileVersion
	f.ID = s.id
	f.Secret.Passphrase = s.passphrase
	f.Secret.PrivateKey = s.keyPrivate
	f.Application.PublicKey = s.keyPublic
	f.Application.ProductID = s.productID
	f.Customer.Name = s.name
	f.Customer.Email = s.email
	f.Customer.Company = s.company
	f.Product.Name = s.product
	f.Product.Version = s.version
	f.Product.PublishDate = s.publishDate
	f.ProductFeatures = pairsFromMap(s.productFeatures)
	f.LicenseAttributes = pairsFromMap(s.licenseAttributes)
	f.License.Type = s.licenseType
	if s.expirationDays != 0 {
		f.License.ExpirationDate = s.expirationDateUTC.Format(time.RFC3339)
	}
	f.License.ExpirationDays = s.expirationDays
	f.License.Quantity = s.quantity
	f.PathAssembly = s.pathAssembly

	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keypair file: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}

	s.clearKeypairDirty()
	return nil
}

// LoadKeypair reads a keypair document from path and repopulates every
// field, leaving both dirty flags clear. A file without a version marker is
// treated as the legacy two-file layout, imported, and immediately re-saved
// in the current format.
func (s *Store) LoadKeypair(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrKeypairFileMissing, path)
		}
		return fmt.Errorf("read keypair file: %w", err)
	}

	var f keypairFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrKeypairFileInvalid, err)
	}

	if f.Version == 0 {
		return s.importLegacyKeypair(path, raw)
	}
	if f.Version != keypairFileVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrKeypairFileInvalid, f.Version)
	}

	s.id = f.ID
	s.passphrase = f.Secret.Passphrase
	s.keyPrivate = f.Secret.PrivateKey
	s.keyPublic = f.Application.PublicKey
	s.productID = f.Application.ProductID
	s.name = f.Customer.Name
	s.email = f.Customer.Email
	s.company = f.Customer.Company
	s.product = f.Product.Name
	s.version = f.Product.Version
	s.publishDate = f.Product.PublishDate
	s.productFeatures = mapFromPairs(f.ProductFeatures)
	s.licenseAttributes = mapFromPairs(f.LicenseAttributes)
	s.licenseType = f.License.Type
	s.quantity = f.License.Quantity
	s.pathAssembly = f.PathAssembly
	s.isLockedToAssembly = f.PathAssembly != ""

	if f.License.ExpirationDate == "" {
		s.expirationDateUTC = NeverExpires
		s.expirationDays = f.License.ExpirationDays
	} else {
		t, err := time.Parse(time.RFC3339, f.License.ExpirationDate)
		if err != nil {
			return fmt.Errorf("%w: bad expiration date: %v", ErrKeypairFileInvalid, err)
		}
		s.expirationDateUTC = t.UTC()
		s.expirationDays = int(s.expirationDateUTC.Sub(s.today()).Hours() / 24)
	}

	s.clearKeypairDirty()
	s.clearLicenseDirty()
	return nil
}

// legacyKeypairFile is the unversioned v1 layout: a flat document holding
// only the secret and identity fields. License terms lived in the sibling
// artifact file.
type legacyKeypairFile struct {
	ID           string `json:"id"`
	Passphrase   string `json:"passphrase"`
	PrivateKey   string `json:"private_key"`
	PublicKey    string `json:"public_key"`
	ProductID    string `json:"product_id"`
	PathAssembly string `json:"path_assembly"`
}

// importLegacyKeypair performs the one-time migration from the legacy
// two-file layout: secrets from the flat keypair document, license terms
// recovered from the sibling artifact's payload (parsed without signature
// verification), then the store is re-saved in the current format.
func (s *Store) importLegacyKeypair(path string, raw []byte) error {
	var old legacyKeypairFile
	if err := json.Unmarshal(raw, &old); err != nil {
		return fmt.Errorf("%w: %v", ErrKeypairFileInvalid, err)
	}
	if old.PrivateKey == "" || old.PublicKey == "" {
		return fmt.Errorf("%w: missing keys in legacy file", ErrKeypairFileInvalid)
	}

	s.id = old.ID
	s.passphrase = old.Passphrase
	s.keyPrivate = old.PrivateKey
	s.keyPublic = old.PublicKey
	s.productID = old.ProductID
	s.pathAssembly = old.PathAssembly
	s.isLockedToAssembly = old.PathAssembly != ""

	licensePath := strings.TrimSuffix(path, filepath.Ext(path)) + LicenseFileExt
	if rawLicense, err := os.ReadFile(licensePath); err == nil {
		if err := s.importLegacyTerms(rawLicense); err != nil {
			return fmt.Errorf("convert legacy keypair: %w", err)
		}
	}

	return s.SaveKeypair(path)
}

// importLegacyTerms copies license terms out of an artifact payload.
func (s *Store) importLegacyTerms(raw []byte) error {
	var env artifactEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactInvalid, err)
	}
	var payload licensePayload
	if err := json.Unmarshal(env.License, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactInvalid, err)
	}

	s.licenseType = payload.Type
	s.quantity = payload.Quantity
	s.name = payload.Customer.Name
	s.email = payload.Customer.Email
	s.company = payload.Customer.Company

	s.product = pairValue(payload.Features, FeatureNameProduct)
	s.version = pairValue(payload.Features, FeatureNameVersion)
	s.publishDate = pairValue(payload.Features, FeatureNamePublishDate)

	features := mapFromPairs(payload.Features)
	for name := range reservedFeatureNames {
		features.Remove(name)
	}
	s.productFeatures = features

	attributes := mapFromPairs(payload.Attributes)
	daysText := pairValue(payload.Attributes, AttributeNameExpirationDays)
	for name := range reservedAttributeNames {
		attributes.Remove(name)
	}
	s.licenseAttributes = attributes

	if daysText == "" {
		s.expirationDays = 0
		s.expirationDateUTC = NeverExpires
	} else {
		days, err := strconv.Atoi(daysText)
		if err != nil {
			return fmt.Errorf("%w: bad expiration days %q", ErrArtifactInvalid, daysText)
		}
		s.expirationDays = days
		s.expirationDateUTC = s.today().AddDate(0, 0, days)
	}
	return nil
}
