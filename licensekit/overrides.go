package licensekit

import (
	"fmt"
	"time"
)

// Overrides is a sparse set of caller-supplied changes applied onto a
// Store's terms. Nil pointer fields are "no override". Passphrase, keys,
// product name, and customer information cannot be overridden.
type Overrides struct {
	Type           *LicenseType
	Quantity       *int
	Version        *string
	PublishDate    *string
	ExpirationDays *int
	ExpirationDate *time.Time

	// Feature and attribute deltas are merged onto the store's current
	// maps (insert-or-update), not a wholesale replacement.
	ProductFeatures   AttributeMap
	LicenseAttributes AttributeMap

	LockPath string
}

// Validate rejects override combinations that must fail before any field
// is mutated: both expiration forms supplied, or a reserved name in one of
// the delta maps.
func (o *Overrides) Validate() error {
	if o.ExpirationDays != nil && o.ExpirationDate != nil {
		return ErrExclusiveExpiration
	}
	for name := range o.ProductFeatures {
		if IsReservedFeatureName(name) {
			return fmt.Errorf("%w: product feature %q", ErrReservedName, name)
		}
	}
	for name := range o.LicenseAttributes {
		if IsReservedAttributeName(name) {
			return fmt.Errorf("%w: license attribute %q", ErrReservedName, name)
		}
	}
	return nil
}

// Apply merges the overrides onto the store, mutating only fields whose
// value actually changes so an effect-free merge leaves the dirty flags
// untouched.
func (o *Overrides) Apply(s *Store) error {
	if err := o.Validate(); err != nil {
		return err
	}

	if o.Version != nil && *o.Version != "" {
		s.SetVersion(*o.Version)
	}
	if o.PublishDate != nil {
		if err := s.SetPublishDate(*o.PublishDate); err != nil {
			return err
		}
	}

	if len(o.ProductFeatures) > 0 {
		merged := s.ProductFeatures()
		for k, v := range o.ProductFeatures {
			merged[k] = v
		}
		if err := s.UpdateProductFeatures(merged); err != nil {
			return err
		}
	}

	if o.Type != nil {
		s.SetLicenseType(*o.Type)
	}
	if o.Quantity != nil {
		s.SetQuantity(*o.Quantity)
	}

	if o.ExpirationDays != nil {
		// The days setter recomputes the expiration date itself.
		s.SetExpirationDays(*o.ExpirationDays)
	} else if o.ExpirationDate != nil {
		date := o.ExpirationDate.UTC()
		if !s.ExpirationDateUTC().Equal(date) {
			s.SetExpirationDateUTC(date)
			// Days is derived once at assignment time on this path; it is
			// not kept live against the date afterwards.
			days := int(date.Sub(s.today()).Hours() / 24)
			s.setExpirationDaysOnly(days)
		}
	}

	if len(o.LicenseAttributes) > 0 {
		merged := s.LicenseAttributes()
		for k, v := range o.LicenseAttributes {
			merged[k] = v
		}
		if err := s.UpdateLicenseAttributes(merged); err != nil {
			return err
		}
	}

	if o.LockPath != "" && s.PathAssembly() != o.LockPath {
		s.SetPathAssembly(o.LockPath)
		s.SetLockedToAssembly(true)
	}
	return nil
}
