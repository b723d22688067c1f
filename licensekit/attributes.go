package licensekit

import (
	"fmt"
	"strings"
)

// Reserved product feature names. Their values are carried as first-class
// fields on Store and Record and written into the maps only while building
// or parsing an artifact.
const (
	FeatureNameProduct     = "Product"
	FeatureNameVersion     = "Version"
	FeatureNamePublishDate = "Publish Date"
)

// Reserved license attribute names.
const (
	AttributeNameProductIdentity  = "Product Identity"
	AttributeNameAssemblyIdentity = "Assembly Identity"
	AttributeNameExpirationDays   = "Expiration Days"
)

var reservedFeatureNames = map[string]bool{
	FeatureNameProduct:     true,
	FeatureNameVersion:     true,
	FeatureNamePublishDate: true,
}

var reservedAttributeNames = map[string]bool{
	AttributeNameProductIdentity:  true,
	AttributeNameAssemblyIdentity: true,
	AttributeNameExpirationDays:   true,
}

// IsReservedFeatureName reports whether name is a reserved product feature
// name. The match is case-sensitive and exact.
func IsReservedFeatureName(name string) bool {
	return reservedFeatureNames[name]
}

// IsReservedAttributeName reports whether name is a reserved license
// attribute name. The match is case-sensitive and exact.
func IsReservedAttributeName(name string) bool {
	return reservedAttributeNames[name]
}

// AttributeMap holds string key/value pairs for product features or license
// attributes. The map itself does not enforce reserved names; callers
// validate at the edges (CLI validation, override merge, artifact build).
type AttributeMap map[string]string

// Get returns the value for key, or ErrAttributeNotFound.
func (m AttributeMap) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrAttributeNotFound, key)
	}
	return v, nil
}

// Set stores value under key, replacing any existing entry.
func (m AttributeMap) Set(key, value string) {
	m[key] = value
}

// Has reports whether key is present.
func (m AttributeMap) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Remove deletes key if present.
func (m AttributeMap) Remove(key string) {
	delete(m, key)
}

// Clone returns an independent copy of the map. A nil map clones to an
// empty, non-nil map.
func (m AttributeMap) Clone() AttributeMap {
	out := make(AttributeMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold exactly the same entries.
func (m AttributeMap) Equal(other AttributeMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// ParseAttributeText converts a newline-delimited block of key=value lines
// into an AttributeMap. Per line: whitespace is trimmed, the first '='
// splits key from value (both trimmed), a line without '=' becomes a key
// with an empty value, and a line starting with '=' is skipped because an
// empty key is invalid. Blank lines are skipped and later duplicate keys
// overwrite earlier ones. Empty input yields an empty map, never an error.
func ParseAttributeText(text string) AttributeMap {
	m := AttributeMap{}
	if strings.TrimSpace(text) == "" {
		return m
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq == 0 {
			continue
		}

		var key, value string
		if eq > 0 {
			key = strings.TrimSpace(line[:eq])
			value = strings.TrimSpace(line[eq+1:])
		} else {
			key = line
		}
		m[key] = value
	}
	return m
}
