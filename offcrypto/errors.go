package offcrypto

import "errors"

// Sentinel errors for the MS-OFFCRYPTO descriptor/crypto layer. Aliased
// by the root package so callers never need to import offcrypto directly
// to use errors.Is.
var (
	ErrInvalidPassword     = errors.New("offcrypto: invalid password")
	ErrIntegrityFailure    = errors.New("offcrypto: data integrity check failed")
	ErrUnsupportedAlgorithm = errors.New("offcrypto: unsupported algorithm")
	ErrMalformedEnvelope   = errors.New("offcrypto: malformed encryption descriptor")
)
