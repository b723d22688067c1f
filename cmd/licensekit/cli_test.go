package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CloudNativeWorks/cnw-licensekit/licensekit"
)

func TestParse_AllArguments(t *testing.T) {
	opts, err := Parse([]string{
		"--private", "test.private",
		"--save",
		"--license", "test.lic",
		"--force",
		"--product-version", "1.2.3",
		"--product-publish-date", "2026-01-15",
		"--product-features", "Edition=Pro Seats=5",
		"--type", "Trial",
		"--quantity", "10",
		"--expiration-days", "30",
		"--license-attributes", "Support=Gold",
		"--lock", "app.bin",
		"--registry", "postgres://localhost/licenses",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if opts.PrivateFilePath != "test.private" || opts.LicenseFilePath != "test.lic" {
		t.Errorf("paths = %s / %s", opts.PrivateFilePath, opts.LicenseFilePath)
	}
	if !opts.SaveKeypair || !opts.ForceOverwrite {
		t.Error("boolean flags not parsed")
	}
	if opts.ProductVersion == nil || *opts.ProductVersion != "1.2.3" {
		t.Error("product version not parsed")
	}
	if opts.ProductPublishDate == nil || *opts.ProductPublishDate != "2026-01-15" {
		t.Error("publish date not parsed")
	}
	if opts.LicenseType == nil || *opts.LicenseType != licensekit.Trial {
		t.Error("license type not parsed")
	}
	if opts.Quantity == nil || *opts.Quantity != 10 {
		t.Error("quantity not parsed")
	}
	if opts.ExpirationDays == nil || *opts.ExpirationDays != 30 {
		t.Error("expiration days not parsed")
	}
	want := licensekit.AttributeMap{"Edition": "Pro", "Seats": "5"}
	if !opts.ProductFeatures.Equal(want) {
		t.Errorf("features = %v, want %v", opts.ProductFeatures, want)
	}
	if !opts.LicenseAttributes.Equal(licensekit.AttributeMap{"Support": "Gold"}) {
		t.Errorf("attributes = %v", opts.LicenseAttributes)
	}
	if opts.LockPath != "app.bin" {
		t.Errorf("lock path = %s", opts.LockPath)
	}
	if opts.RegistryURI != "postgres://localhost/licenses" {
		t.Errorf("registry = %s", opts.RegistryURI)
	}
}

func TestParse_ShortAliases(t *testing.T) {
	opts, err := Parse([]string{
		"-p", "test.private", "-s", "-l", "test.lic", "-f",
		"-v", "2.0", "-t", "standard", "-q", "3", "-dy", "0",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.PrivateFilePath != "test.private" || !opts.SaveKeypair || !opts.ForceOverwrite {
		t.Error("short aliases not recognized")
	}
	if opts.LicenseType == nil || *opts.LicenseType != licensekit.Standard {
		t.Error("case-insensitive type not parsed")
	}
	if opts.ExpirationDays == nil || *opts.ExpirationDays != 0 {
		t.Error("zero expiration days is a valid value")
	}
}

func TestParse_ExpirationDate(t *testing.T) {
	opts, err := Parse([]string{"-p", "x", "-dt", "2026-12-31"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
	if opts.ExpirationDate == nil || !opts.ExpirationDate.Equal(want) {
		t.Errorf("expiration date = %v, want %s", opts.ExpirationDate, want)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown argument", []string{"--bogus"}, "unknown argument"},
		{"missing value", []string{"--private"}, "missing value"},
		{"bad type", []string{"-t", "Premium"}, "invalid license type"},
		{"bad quantity", []string{"-q", "zero"}, "quantity must be"},
		{"negative quantity", []string{"-q", "-1"}, "quantity must be"},
		{"negative days", []string{"-dy", "-5"}, "expiration days must be"},
		{"bad date", []string{"-dt", "31/12/2026"}, "invalid expiration-date format"},
		{"bad publish date", []string{"-pd", "Jan 15"}, "invalid product-publish-date format"},
		{"bad pair", []string{"-pf", "=NoKey"}, "invalid product features format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse(%v) error = %v, want containing %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestParse_RegistryFromEnvironment(t *testing.T) {
	t.Setenv("LICENSEKIT_REGISTRY_URI", "mongodb://localhost/licenses")

	opts, err := Parse([]string{"-p", "x"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.RegistryURI != "mongodb://localhost/licenses" {
		t.Errorf("registry = %s, want env fallback", opts.RegistryURI)
	}

	// An explicit flag wins over the environment.
	opts, err = Parse([]string{"-p", "x", "--registry", "postgres://other"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.RegistryURI != "postgres://other" {
		t.Errorf("registry = %s, want flag value", opts.RegistryURI)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "test.private")
	if err := os.WriteFile(private, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(dir, "existing.lic")
	if err := os.WriteFile(existing, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts Options
		want string // empty means valid
	}{
		{
			name: "missing private path",
			opts: Options{SaveKeypair: true},
			want: "private file path is required",
		},
		{
			name: "private file absent",
			opts: Options{PrivateFilePath: filepath.Join(dir, "nope.private"), SaveKeypair: true},
			want: "private file does not exist",
		},
		{
			// No action requested means display mode, which is valid.
			name: "no action",
			opts: Options{PrivateFilePath: private},
		},
		{
			name: "save only",
			opts: Options{PrivateFilePath: private, SaveKeypair: true},
		},
		{
			name: "new license file",
			opts: Options{PrivateFilePath: private, LicenseFilePath: filepath.Join(dir, "new.lic")},
		},
		{
			name: "existing license without force",
			opts: Options{PrivateFilePath: private, LicenseFilePath: existing},
			want: "will not be overwritten",
		},
		{
			name: "existing license with force",
			opts: Options{PrivateFilePath: private, LicenseFilePath: existing, ForceOverwrite: true},
		},
		{
			name: "license directory absent",
			opts: Options{PrivateFilePath: private, LicenseFilePath: filepath.Join(dir, "sub", "new.lic")},
			want: "directory does not exist",
		},
		{
			name: "both expiration forms",
			opts: Options{
				PrivateFilePath: private,
				SaveKeypair:     true,
				ExpirationDays:  intPtr(30),
				ExpirationDate:  timePtr(time.Now()),
			},
			want: "mutually exclusive",
		},
		{
			name: "reserved feature name",
			opts: Options{
				PrivateFilePath: private,
				SaveKeypair:     true,
				ProductFeatures: licensekit.AttributeMap{"Version": "2.0"},
			},
			want: "reserved",
		},
		{
			name: "lock file absent",
			opts: Options{
				PrivateFilePath: private,
				SaveKeypair:     true,
				LockPath:        filepath.Join(dir, "nope.bin"),
			},
			want: "lock file does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	store := licensekit.NewStore()

	quantity := 7
	version := "4.0.0"
	opts := &Options{
		Quantity:        &quantity,
		ProductVersion:  &version,
		ProductFeatures: licensekit.AttributeMap{"Edition": "Pro"},
	}
	if err := opts.ApplyOverrides(store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Quantity() != 7 || store.Version() != "4.0.0" {
		t.Errorf("store = %d / %s", store.Quantity(), store.Version())
	}
	if v, _ := store.ProductFeatures().Get("Edition"); v != "Pro" {
		t.Errorf("feature = %q", v)
	}
}

// writeIssuerKeypair saves a keypair file populated with every field the
// signer requires.
func writeIssuerKeypair(t *testing.T, path string) {
	t.Helper()
	s := licensekit.NewStore()
	s.SetPassphrase("test passphrase")
	if err := s.CreateKeypair(); err != nil {
		t.Fatal(err)
	}
	s.SetProductID("Test Product ID")
	s.SetProduct("Test Product")
	s.SetVersion("1.0.0")
	s.SetName("Jane Doe")
	s.SetEmail("jane@example.com")
	if err := s.SaveKeypair(path); err != nil {
		t.Fatal(err)
	}
}

func TestRun_DisplayMode(t *testing.T) {
	t.Setenv("LICENSEKIT_REGISTRY_URI", "")
	private := filepath.Join(t.TempDir(), "test.private")
	writeIssuerKeypair(t, private)

	// No --save and no --license displays the keypair file's properties
	// and succeeds.
	if code := run([]string{"-p", private}); code != 0 {
		t.Errorf("run = %d, want 0", code)
	}
}

func TestRun_SignsLicense(t *testing.T) {
	t.Setenv("LICENSEKIT_REGISTRY_URI", "")
	dir := t.TempDir()
	private := filepath.Join(dir, "test.private")
	writeIssuerKeypair(t, private)
	license := filepath.Join(dir, "out.lic")

	if code := run([]string{"-p", private, "-l", license}); code != 0 {
		t.Fatalf("run = %d, want 0", code)
	}
	if _, err := os.Stat(license); err != nil {
		t.Errorf("license file not written: %v", err)
	}
}

func TestRun_RegistryFailureDoesNotFailIssuance(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "test.private")
	writeIssuerKeypair(t, private)
	license := filepath.Join(dir, "out.lic")

	// A registry URI with no host fails immediately, but the license was
	// already signed, so the run still succeeds.
	code := run([]string{"-p", private, "-l", license, "--registry", "mongodb://"})
	if code != 0 {
		t.Errorf("run = %d, want 0", code)
	}
	if _, err := os.Stat(license); err != nil {
		t.Errorf("license file not written: %v", err)
	}
}

func TestPrintProperties(t *testing.T) {
	store := licensekit.NewStore()
	store.SetProduct("Test Product")
	store.SetQuantity(5)
	if err := store.UpdateProductFeatures(licensekit.AttributeMap{"Edition": "Pro"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printProperties(&buf, store)
	out := buf.String()

	for _, want := range []string{
		"Product:             Test Product",
		"Quantity:            5",
		"Expiration:          None",
		"Edition = Pro",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func intPtr(v int) *int              { return &v }
func timePtr(v time.Time) *time.Time { return &v }
