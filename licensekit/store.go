package licensekit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the licensor-side, mutable holder of a keypair and all editable
// license terms. Every mutation of a tracked field sets both dirty flags;
// only SaveKeypair, SignFile, and LoadKeypair clear them. A Store is not
// safe for concurrent use.
type Store struct {
	id          string
	licenseType LicenseType

	expirationDateUTC time.Time
	expirationDays    int
	quantity          int

	product     string
	version     string
	publishDate string

	productFeatures   AttributeMap
	licenseAttributes AttributeMap

	name    string
	email   string
	company string

	passphrase string
	keyPrivate string // passphrase-encrypted, never exposed
	keyPublic  string

	productID          string
	isLockedToAssembly bool
	pathAssembly       string

	keypairDirty bool
	licenseDirty bool

	now func() time.Time // test hook
}

// NewStore returns a Store with a fresh random identifier and default
// license terms (Standard, quantity 1, never expires).
func NewStore() *Store {
	return &Store{
		id:                uuid.NewString(),
		licenseType:       Standard,
		expirationDateUTC: NeverExpires,
		quantity:          1,
		productFeatures:   AttributeMap{},
		licenseAttributes: AttributeMap{},
		now:               time.Now,
	}
}

// today returns the current UTC date at midnight.
func (s *Store) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

func (s *Store) markDirty() {
	s.keypairDirty = true
	s.licenseDirty = true
}

// Dirty-flag clearing is reserved for save/sign/load operations; tests in
// this package call these directly.
func (s *Store) clearKeypairDirty() { s.keypairDirty = false }
func (s *Store) clearLicenseDirty() { s.licenseDirty = false }

// KeypairDirty reports whether the store has changed since the keypair
// file was last saved or loaded.
func (s *Store) KeypairDirty() bool { return s.keypairDirty }

// LicenseDirty reports whether the store has changed since a license
// artifact was last signed.
func (s *Store) LicenseDirty() bool { return s.licenseDirty }

// CreateKeypair generates a new Ed25519 keypair, encrypting the private
// key under the store's passphrase. The passphrase must be set first.
func (s *Store) CreateKeypair() error {
	if s.passphrase == "" {
		return &FieldError{Field: "Passphrase", Reason: "must not be empty"}
	}
	private, public, err := generateKeypair(s.passphrase)
	if err != nil {
		return err
	}
	s.keyPrivate = private
	s.keyPublic = public
	s.markDirty()
	return nil
}

// NewID replaces the store's unique identifier with a fresh random one.
func (s *Store) NewID() {
	s.id = uuid.NewString()
	s.markDirty()
}

func (s *Store) ID() string { return s.id }

func (s *Store) LicenseType() LicenseType { return s.licenseType }

func (s *Store) ExpirationDateUTC() time.Time { return s.expirationDateUTC }

func (s *Store) ExpirationDays() int { return s.expirationDays }

func (s *Store) Quantity() int { return s.quantity }

func (s *Store) Product() string { return s.product }

func (s *Store) Version() string { return s.version }

func (s *Store) PublishDate() string { return s.publishDate }

func (s *Store) Name() string { return s.name }

func (s *Store) Email() string { return s.email }

func (s *Store) Company() string { return s.company }

func (s *Store) Passphrase() string { return s.passphrase }

func (s *Store) PublicKey() string { return s.keyPublic }

func (s *Store) ProductID() string { return s.productID }

func (s *Store) IsLockedToAssembly() bool { return s.isLockedToAssembly }

func (s *Store) PathAssembly() string { return s.pathAssembly }

// ProductFeatures returns a copy of the custom product feature map.
func (s *Store) ProductFeatures() AttributeMap { return s.productFeatures.Clone() }

// LicenseAttributes returns a copy of the custom license attribute map.
func (s *Store) LicenseAttributes() AttributeMap { return s.licenseAttributes.Clone() }

// SetLicenseType changes the license type.
func (s *Store) SetLicenseType(t LicenseType) {
	if s.licenseType == t {
		return
	}
	s.licenseType = t
	s.markDirty()
}

// SetQuantity changes the licensed quantity.
func (s *Store) SetQuantity(q int) {
	if s.quantity == q {
		return
	}
	s.quantity = q
	s.markDirty()
}

// SetExpirationDays sets the expiry in days from today and recomputes the
// expiration date: today + days, or the NeverExpires sentinel for zero.
func (s *Store) SetExpirationDays(days int) {
	if s.expirationDays == days {
		return
	}
	s.expirationDays = days
	if days == 0 {
		s.expirationDateUTC = NeverExpires
	} else {
		s.expirationDateUTC = s.today().AddDate(0, 0, days)
	}
	s.markDirty()
}

// SetExpirationDateUTC sets the expiration date directly. It does not
// recompute ExpirationDays; callers overriding the date derive days once
// at assignment time (see Overrides.Apply).
func (s *Store) SetExpirationDateUTC(t time.Time) {
	t = t.UTC()
	if s.expirationDateUTC.Equal(t) {
		return
	}
	s.expirationDateUTC = t
	s.markDirty()
}

// setExpirationDaysOnly records a derived days value without touching the
// expiration date. Used by the date-override path and keypair loading.
func (s *Store) setExpirationDaysOnly(days int) {
	if s.expirationDays == days {
		return
	}
	s.expirationDays = days
	s.markDirty()
}

func (s *Store) SetProduct(v string) {
	if s.product == v {
		return
	}
	s.product = v
	s.markDirty()
}

func (s *Store) SetVersion(v string) {
	if s.version == v {
		return
	}
	s.version = v
	s.markDirty()
}

// SetPublishDate sets the optional product publish date ("2006-01-02" or
// empty to clear).
func (s *Store) SetPublishDate(v string) error {
	if v != "" {
		if _, err := time.Parse(publishDateLayout, v); err != nil {
			return fmt.Errorf("invalid publish date %q: use YYYY-MM-DD", v)
		}
	}
	if s.publishDate == v {
		return nil
	}
	s.publishDate = v
	s.markDirty()
	return nil
}

func (s *Store) SetName(v string) {
	if s.name == v {
		return
	}
	s.name = v
	s.markDirty()
}

func (s *Store) SetEmail(v string) {
	if s.email == v {
		return
	}
	s.email = v
	s.markDirty()
}

func (s *Store) SetCompany(v string) {
	if s.company == v {
		return
	}
	s.company = v
	s.markDirty()
}

// SetPassphrase changes the passphrase. The encrypted private key is NOT
// re-encrypted; signing with a stale keypair after a passphrase change
// fails with ErrPassphraseMismatch until CreateKeypair is called again.
func (s *Store) SetPassphrase(v string) {
	if s.passphrase == v {
		return
	}
	s.passphrase = v
	s.markDirty()
}

func (s *Store) SetProductID(v string) {
	if s.productID == v {
		return
	}
	s.productID = v
	s.markDirty()
}

func (s *Store) SetPathAssembly(v string) {
	if s.pathAssembly == v {
		return
	}
	s.pathAssembly = v
	s.markDirty()
}

func (s *Store) SetLockedToAssembly(locked bool) {
	if s.isLockedToAssembly == locked {
		return
	}
	s.isLockedToAssembly = locked
	s.markDirty()
}

// UpdateProductFeatures replaces the custom product feature map. A map
// equal in content to the current one leaves the dirty flags untouched;
// reserved feature names are rejected before any mutation.
func (s *Store) UpdateProductFeatures(features AttributeMap) error {
	if s.productFeatures.Equal(features) {
		return nil
	}
	for name := range features {
		if IsReservedFeatureName(name) {
			return fmt.Errorf("%w: product feature %q", ErrReservedName, name)
		}
	}
	s.productFeatures = features.Clone()
	s.markDirty()
	return nil
}

// UpdateLicenseAttributes replaces the custom license attribute map with
// the same change-detection and reserved-name rules as
// UpdateProductFeatures.
func (s *Store) UpdateLicenseAttributes(attributes AttributeMap) error {
	if s.licenseAttributes.Equal(attributes) {
		return nil
	}
	for name := range attributes {
		if IsReservedAttributeName(name) {
			return fmt.Errorf("%w: license attribute %q", ErrReservedName, name)
		}
	}
	s.licenseAttributes = attributes.Clone()
	s.markDirty()
	return nil
}
