// Package issueregistry records which license artifacts a licensor has
// signed, so issued terms can be listed and audited without re-opening the
// artifact files.
package issueregistry

import (
	"context"
	"time"
)

// IssuedLicense is one signed-artifact record in the issuance log.
type IssuedLicense struct {
	LicenseID   string    `json:"license_id" bson:"license_id"`
	ProductID   string    `json:"product_id" bson:"product_id"`
	Product     string    `json:"product" bson:"product"`
	Customer    string    `json:"customer" bson:"customer"`
	Email       string    `json:"email" bson:"email"`
	Type        string    `json:"type" bson:"type"`
	Quantity    int       `json:"quantity" bson:"quantity"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
	LicensePath string    `json:"license_path" bson:"license_path"`
	IssuedAt    time.Time `json:"issued_at" bson:"issued_at"`
}

// Registry stores issuance records for a licensor.
type Registry interface {
	// Record creates or refreshes an issuance entry (upsert by license id).
	Record(ctx context.Context, lic IssuedLicense) (*IssuedLicense, error)

	// Get returns the entry for a license id, or nil when absent.
	Get(ctx context.Context, licenseID string) (*IssuedLicense, error)

	// List returns all entries for a product id, oldest first.
	List(ctx context.Context, productID string) ([]IssuedLicense, error)

	// Count returns the number of entries for a product id.
	Count(ctx context.Context, productID string) (int, error)

	// Prune removes entries issued before the cutoff.
	// Returns the number of entries removed.
	Prune(ctx context.Context, productID string, issuedBefore time.Time) (int, error)

	// Close releases any resources held by the registry.
	Close(ctx context.Context) error
}
