package licensekit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// File extensions used by licensor tooling.
const (
	LicenseFileExt = ".lic"
	KeypairFileExt = ".private"
)

// publishDateLayout is the wire format for the optional product publish date.
const publishDateLayout = "2006-01-02"

// LicenseType distinguishes standard from trial licenses.
type LicenseType string

const (
	Standard LicenseType = "Standard"
	Trial    LicenseType = "Trial"
)

// ParseLicenseType parses a case-insensitive license type name.
func ParseLicenseType(s string) (LicenseType, error) {
	switch strings.ToLower(s) {
	case "standard":
		return Standard, nil
	case "trial":
		return Trial, nil
	default:
		return "", fmt.Errorf("invalid license type %q: valid values are Standard, Trial", s)
	}
}

// NeverExpires is the sentinel expiration date for licenses without an
// expiry.
var NeverExpires = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Record is the validated, read-only projection of a signed license
// artifact. It is fully populated only when validation succeeds.
type Record struct {
	Type              LicenseType
	ExpirationDateUTC time.Time
	ExpirationDays    int
	Quantity          int

	Product     string
	Version     string
	PublishDate string // "2006-01-02" or empty

	Name    string
	Email   string
	Company string

	ProductFeatures   AttributeMap
	LicenseAttributes AttributeMap

	ProductID          string
	IsLockedToAssembly bool
	PathAssembly       string
}

// newRecord returns a Record in its cleared default shape.
func newRecord() *Record {
	return &Record{
		Type:              Standard,
		ExpirationDateUTC: NeverExpires,
		Quantity:          1,
		ProductFeatures:   AttributeMap{},
		LicenseAttributes: AttributeMap{},
	}
}

// GetProductFeature returns the value of a custom product feature, or
// ErrAttributeNotFound. Reserved features are exposed via dedicated fields.
func (r *Record) GetProductFeature(name string) (string, error) {
	return r.ProductFeatures.Get(name)
}

// HasProductFeature reports whether a custom product feature is present.
func (r *Record) HasProductFeature(name string) bool {
	return r.ProductFeatures.Has(name)
}

// GetLicenseAttribute returns the value of a custom license attribute, or
// ErrAttributeNotFound.
func (r *Record) GetLicenseAttribute(name string) (string, error) {
	return r.LicenseAttributes.Get(name)
}

// HasLicenseAttribute reports whether a custom license attribute is present.
func (r *Record) HasLicenseAttribute(name string) bool {
	return r.LicenseAttributes.Has(name)
}

// artifactEnvelope is the outer structure of a signed license file. The
// payload is kept as raw JSON so signature verification sees the exact
// bytes that were signed.
type artifactEnvelope struct {
	License   json.RawMessage `json:"license"`
	Signature string          `json:"signature"`
	PublicKey string          `json:"public_key"`
}

// attrPair is one entry in a name/value pair list. Features and attributes
// travel as sorted lists rather than JSON objects so artifact bytes are
// deterministic and the clear-text file stays easy to read.
type attrPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// customerPayload is the customer block of the signed payload.
type customerPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
}

// licensePayload is the signed rights payload of a license artifact.
// Expiration is omitted entirely for never-expiring licenses.
type licensePayload struct {
	ID         string          `json:"id"`
	Type       LicenseType     `json:"type"`
	Quantity   int             `json:"quantity"`
	Expiration *time.Time      `json:"expiration,omitempty"`
	Customer   customerPayload `json:"customer"`
	Features   []attrPair      `json:"product_features"`
	Attributes []attrPair      `json:"license_attributes"`
}

// pairsFromMap converts an attribute map to a list sorted by name.
func pairsFromMap(m AttributeMap) []attrPair {
	pairs := make([]attrPair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, attrPair{Name: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs
}

// mapFromPairs converts a pair list back to a map. Entries with empty
// names are dropped; later duplicates win.
func mapFromPairs(pairs []attrPair) AttributeMap {
	m := make(AttributeMap, len(pairs))
	for _, p := range pairs {
		if p.Name == "" {
			continue
		}
		m[p.Name] = p.Value
	}
	return m
}

// pairValue returns the value for name in a pair list, or an empty string.
func pairValue(pairs []attrPair, name string) string {
	for _, p := range pairs {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}
