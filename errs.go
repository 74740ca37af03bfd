// Package ooxmlcrypt encrypts and decrypts OOXML documents under the
// MS-OFFCRYPTO envelope: an OLE2 compound file carrying an
// EncryptionInfo descriptor, an EncryptedPackage stream, and the fixed
// DataSpaces transform-chain substorage, in either the Standard or
// Agile profile.
package ooxmlcrypt

import (
	"errors"

	"github.com/fcwoknhenuxdfiyv/ooxmlcrypt/cfb"
	"github.com/fcwoknhenuxdfiyv/ooxmlcrypt/offcrypto"
)

var (
	// configure at build time by adding go build arguments:
	//   -ldflags="-X github.com/fcwoknhenuxdfiyv/ooxmlcrypt.loglevel=debug"
	loglevel string = "warn"

	// Debug should be set to true to expose detailed logging.
	Debug bool = (loglevel == "debug")
)

// Sentinel errors, aliased from the underlying packages so callers never
// need to import cfb or offcrypto directly to use errors.Is.
var (
	ErrInvalidPassword      = offcrypto.ErrInvalidPassword
	ErrIntegrityFailure     = offcrypto.ErrIntegrityFailure
	ErrUnsupportedAlgorithm = offcrypto.ErrUnsupportedAlgorithm
	ErrMalformedEnvelope    = offcrypto.ErrMalformedEnvelope
	ErrNotEncryptedPackage  = cfb.ErrNotCFB

	// ErrIoError wraps a failure reading from or writing to a caller-owned
	// stream. The underlying error is always reachable via errors.Unwrap.
	ErrIoError = errors.New("ooxmlcrypt: io error")
)

type errx struct {
	errs []error
}

func (e errx) Error() string {
	return e.errs[0].Error()
}
func (e errx) Unwrap() error {
	if len(e.errs) > 1 {
		return e.errs[1]
	}
	return nil
}

// Is reports whether target is the first wrapped error, so errors.Is
// matches the tag as well as the underlying cause.
func (e errx) Is(target error) bool {
	return e.errs[0] == target
}

// WrapErr wraps a set of errors.
func WrapErr(e ...error) error {
	if len(e) == 1 {
		return e[0]
	}
	return errx{errs: e}
}

// ioErr tags err as an I/O failure from a caller-owned stream.
func ioErr(err error) error {
	if err == nil {
		return nil
	}
	return WrapErr(ErrIoError, err)
}
