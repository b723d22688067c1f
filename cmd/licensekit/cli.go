package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CloudNativeWorks/cnw-licensekit/licensekit"
)

// Options is the flat set of parsed CLI arguments: the required keypair
// path, the requested actions, and optional overrides handed to
// licensekit.Overrides.
type Options struct {
	PrivateFilePath string

	// With neither action set, the tool just displays the keypair
	// file's properties.
	SaveKeypair     bool
	LicenseFilePath string

	ForceOverwrite bool

	ProductVersion     *string
	ProductPublishDate *string
	ProductFeatures    licensekit.AttributeMap
	LicenseType        *licensekit.LicenseType
	Quantity           *int
	ExpirationDays     *int
	ExpirationDate     *time.Time
	LicenseAttributes  licensekit.AttributeMap
	LockPath           string

	// RegistryURI is a postgres DSN or mongodb URI for the optional
	// issuance registry. Defaults to $LICENSEKIT_REGISTRY_URI.
	RegistryURI string

	HelpRequested bool
}

// Parse tokenizes command line arguments into Options. It reports the
// first unknown argument or missing value as an error.
func Parse(args []string) (*Options, error) {
	opts := &Options{
		ProductFeatures:   licensekit.AttributeMap{},
		LicenseAttributes: licensekit.AttributeMap{},
	}

	next := func(i *int, name string) (string, error) {
		*i++
		if *i >= len(args) {
			return "", fmt.Errorf("missing value for %s argument", name)
		}
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		switch strings.ToLower(args[i]) {
		case "--private", "-p":
			v, err := next(&i, "--private")
			if err != nil {
				return nil, err
			}
			opts.PrivateFilePath = v

		case "--save", "-s":
			opts.SaveKeypair = true

		case "--license", "-l":
			v, err := next(&i, "--license")
			if err != nil {
				return nil, err
			}
			opts.LicenseFilePath = v

		case "--force", "-f":
			opts.ForceOverwrite = true

		case "--product-version", "-v":
			v, err := next(&i, "--product-version")
			if err != nil {
				return nil, err
			}
			opts.ProductVersion = &v

		case "--product-publish-date", "-pd":
			v, err := next(&i, "--product-publish-date")
			if err != nil {
				return nil, err
			}
			if _, err := time.Parse("2006-01-02", v); err != nil {
				return nil, fmt.Errorf("invalid product-publish-date format: use YYYY-MM-DD")
			}
			opts.ProductPublishDate = &v

		case "--product-features", "-pf":
			v, err := next(&i, "--product-features")
			if err != nil {
				return nil, err
			}
			if err := parseKeyValuePairs(v, opts.ProductFeatures, "product features"); err != nil {
				return nil, err
			}

		case "--type", "-t":
			v, err := next(&i, "--type")
			if err != nil {
				return nil, err
			}
			t, err := licensekit.ParseLicenseType(v)
			if err != nil {
				return nil, err
			}
			opts.LicenseType = &t

		case "--quantity", "-q":
			v, err := next(&i, "--quantity")
			if err != nil {
				return nil, err
			}
			q, err := strconv.Atoi(v)
			if err != nil || q < 1 {
				return nil, fmt.Errorf("quantity must be a positive integer")
			}
			opts.Quantity = &q

		case "--expiration-days", "-dy":
			v, err := next(&i, "--expiration-days")
			if err != nil {
				return nil, err
			}
			d, err := strconv.Atoi(v)
			if err != nil || d < 0 {
				return nil, fmt.Errorf("expiration days must be zero or a positive integer")
			}
			opts.ExpirationDays = &d

		case "--expiration-date", "-dt":
			v, err := next(&i, "--expiration-date")
			if err != nil {
				return nil, err
			}
			t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("invalid expiration-date format: use YYYY-MM-DD")
			}
			opts.ExpirationDate = &t

		case "--license-attributes", "-la":
			v, err := next(&i, "--license-attributes")
			if err != nil {
				return nil, err
			}
			if err := parseKeyValuePairs(v, opts.LicenseAttributes, "license attributes"); err != nil {
				return nil, err
			}

		case "--lock":
			v, err := next(&i, "--lock")
			if err != nil {
				return nil, err
			}
			opts.LockPath = v

		case "--registry":
			v, err := next(&i, "--registry")
			if err != nil {
				return nil, err
			}
			opts.RegistryURI = v

		case "--help", "-h", "-?":
			opts.HelpRequested = true

		default:
			return nil, fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	if opts.RegistryURI == "" {
		opts.RegistryURI = os.Getenv("LICENSEKIT_REGISTRY_URI")
	}
	return opts, nil
}

// parseKeyValuePairs parses space-separated key=value pairs into dst.
func parseKeyValuePairs(input string, dst licensekit.AttributeMap, argumentName string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	pairs := strings.Fields(input)
	parsed := licensekit.ParseAttributeText(strings.Join(pairs, "\n"))
	if len(parsed) != len(pairs) {
		return fmt.Errorf("invalid %s format: expected key=value pairs", argumentName)
	}
	for k, v := range parsed {
		dst[k] = v
	}
	return nil
}

// Validate checks the parsed arguments against the filesystem and the
// override rules. File-existence and overwrite protection live here, at
// the CLI boundary, not in the signing core.
func (o *Options) Validate() error {
	if o.HelpRequested {
		return nil
	}

	if strings.TrimSpace(o.PrivateFilePath) == "" {
		return fmt.Errorf("private file path is required: use --private or -p")
	}
	if _, err := os.Stat(o.PrivateFilePath); err != nil {
		return fmt.Errorf("private file does not exist: %s", o.PrivateFilePath)
	}

	if o.LicenseFilePath != "" {
		if _, err := os.Stat(o.LicenseFilePath); err == nil && !o.ForceOverwrite {
			return fmt.Errorf("license file already exists and will not be overwritten: %s", o.LicenseFilePath)
		}
		if dir := filepath.Dir(o.LicenseFilePath); dir != "." {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("directory does not exist for license file: %s", dir)
			}
		}
	}

	if err := o.overrides().Validate(); err != nil {
		return err
	}

	if o.LockPath != "" {
		if _, err := os.Stat(o.LockPath); err != nil {
			return fmt.Errorf("lock file does not exist: %s", o.LockPath)
		}
	}
	return nil
}

func (o *Options) overrides() *licensekit.Overrides {
	return &licensekit.Overrides{
		Type:              o.LicenseType,
		Quantity:          o.Quantity,
		Version:           o.ProductVersion,
		PublishDate:       o.ProductPublishDate,
		ExpirationDays:    o.ExpirationDays,
		ExpirationDate:    o.ExpirationDate,
		ProductFeatures:   o.ProductFeatures,
		LicenseAttributes: o.LicenseAttributes,
		LockPath:          o.LockPath,
	}
}

// ApplyOverrides merges the optional CLI overrides onto the store.
func (o *Options) ApplyOverrides(store *licensekit.Store) error {
	return o.overrides().Apply(store)
}

// ShowHelp writes usage text to w.
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `licensekit - create license files from .private keypair files

Usage:
  licensekit --private <path> --license <path> [options]
  licensekit --private <path> --save --license <path> [options]
  licensekit --private <path> --save [options]

Required arguments:
  --private, -p <path>  Path to the .private keypair file

Actions (if neither is specified, the properties of the .private file are displayed):
  --save, -s            Save the keypair file
  --license, -l <path>  Path to the new .lic file (will not overwrite unless --force)

Optional arguments:
  --force, -f                        Overwrite the license file if it already exists
  --product-version, -v <version>    Product version
  --product-publish-date, -pd <date> Product publish date (YYYY-MM-DD)
  --product-features, -pf <pairs>    Product features as space-separated key=value pairs
  --type, -t <Standard | Trial>      License type
  --quantity, -q <number>            License quantity (positive integer)
  --expiration-days, -dy <days>      Expiration in days (0 = no expiry)
  --expiration-date, -dt <date>      Expiration date (YYYY-MM-DD)
  --license-attributes, -la <pairs>  License attributes as space-separated key=value pairs
  --lock <path>                      Lock the license to a specific binary
  --registry <uri>                   Record issuance in a postgres or mongodb registry
                                     (default: $LICENSEKIT_REGISTRY_URI)
  --help, -h                         Show this help

Notes:
  - Cannot override: passphrase, keys, product name, customer info
  - Either expiration-days or expiration-date can be specified, not both
  - Reserved feature names: Product, Version, Publish Date
  - Reserved attribute names: Product Identity, Assembly Identity, Expiration Days
`)
}
