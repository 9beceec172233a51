// Package buildstamp stamps emitted Koopa/RISC-V text with a short
// content fingerprint header comment, and validates the compiler's own
// version string.
package buildstamp

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"
)

// Version is the compiler's own release version. It must be valid
// semver; cmd/sysyc checks this once at startup via CheckVersion and
// exits non-zero if it is not.
const Version = "v1.0.0"

// CheckVersion reports whether v is syntactically valid semver.
func CheckVersion(v string) bool {
	return semver.IsValid(v)
}

// Fingerprint returns a short hex digest of src, embedded as a header
// comment in emitted output so two compilations of the same source are
// trivially comparable without diffing the whole file.
func Fingerprint(src []byte) string {
	sum := blake2b.Sum256(src)
	return hex.EncodeToString(sum[:8])
}

// Header renders the leading comment line placed at the top of every
// emitted Koopa or RISC-V file. commentPrefix is "//" for Koopa text and
// "#" for GNU-as RISC-V text.
func Header(commentPrefix string, src []byte) string {
	return fmt.Sprintf("%s sysyc %s build %s\n", commentPrefix, Version, Fingerprint(src))
}
