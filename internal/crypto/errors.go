package crypto

import "errors"

var (
	// ErrWrongPassphrase is returned when stored cipher material cannot be
	// unwrapped with the supplied passphrase.
	ErrWrongPassphrase = errors.New("crypto: wrong passphrase for stored cipher material")

	// ErrValueCorrupted is returned when a stored value fails authenticated
	// decryption. Callers must surface this distinctly from a missing row.
	ErrValueCorrupted = errors.New("crypto: value failed authenticated decryption")

	// ErrInvalidExport is returned when a persisted cipher export blob is
	// malformed (wrong length or unknown layout version).
	ErrInvalidExport = errors.New("crypto: malformed cipher export blob")
)
