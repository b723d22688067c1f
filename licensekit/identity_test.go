package licensekit

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestComputeProductIdentity(t *testing.T) {
	got := ComputeProductIdentity("My Product ID", "publickey")

	sum := sha256.Sum256([]byte("My Product ID publickey"))
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Errorf("ComputeProductIdentity = %s, want %s", got, want)
	}

	if got == ComputeProductIdentity("My Product ID", "otherkey") {
		t.Error("different public keys should yield different identities")
	}
	if got == ComputeProductIdentity("Other ID", "publickey") {
		t.Error("different product IDs should yield different identities")
	}
}

func TestComputeAssemblyIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.bin")
	if err := os.WriteFile(path, []byte("binary contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ComputeAssemblyIdentity(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := sha256.Sum256([]byte("binary contents"))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("ComputeAssemblyIdentity = %s, want %s", got, want)
	}
}

func TestComputeAssemblyIdentity_MissingFile(t *testing.T) {
	if _, err := ComputeAssemblyIdentity(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
