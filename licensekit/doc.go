// Package licensekit issues and validates signed software licenses.
//
// A licensor holds a keypair Store with a secret passphrase, edits product,
// customer, and entitlement terms, and signs portable license artifacts. A
// licensee application ships only with its product ID and public key and
// validates artifacts offline, without ever learning the passphrase.
//
// # Licensor
//
//	store := licensekit.NewStore()
//	store.SetPassphrase("my secret passphrase")
//	if err := store.CreateKeypair(); err != nil { ... }
//	store.SetProductID("My Product ID")
//	store.SetProduct("My Product")
//	store.SetVersion("1.0.0")
//	store.SetName("Jane Doe")
//	store.SetEmail("jane@example.com")
//	if err := store.SignFile("MyProduct.lic"); err != nil { ... }
//
// # Licensee
//
//	v := licensekit.NewValidator(productID, publicKey)
//	record, ok, messages := v.ValidateFile("MyProduct.lic")
//	if !ok {
//	    // Run in unlicensed/restricted mode; messages explains why.
//	}
//
// Artifacts are clear-text JSON with an Ed25519 signature block: the
// signature, not secrecy, prevents tampering.
package licensekit
