// Package offcrypto implements the cryptographic primitives, profiles, and
// descriptor codecs of MS-OFFCRYPTO §2.3.4 (the Standard and Agile
// encryption profiles used for OOXML documents).
package offcrypto

// https://docs.microsoft.com/en-us/openspecs/office_file_formats/ms-offcrypto/3c34d72a-1a61-4b52-a893-196f9157f083

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"
	"unicode/utf16"

	"golang.org/x/crypto/ripemd160"
)

// DefaultPassword is the legacy Excel fallback used whenever the caller
// supplies an empty password. Note <100>, MS-OFFCRYPTO §2.3.
var DefaultPassword = "VelvetSweatshop"

// PasswordBytes encodes password as UTF-16LE without a BOM or terminator,
// substituting DefaultPassword when password is empty.
func PasswordBytes(password string) []byte {
	if password == "" {
		password = DefaultPassword
	}
	r16 := utf16.Encode([]rune(password))
	b := make([]byte, len(r16)*2)
	for i, u := range r16 {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
	return b
}

// SaltPassword concatenates salt and the UTF-16LE password, salt first.
func SaltPassword(salt, passwordUTF16 []byte) []byte {
	out := make([]byte, 0, len(salt)+len(passwordUTF16))
	out = append(out, salt...)
	out = append(out, passwordUTF16...)
	return out
}

// FixSize returns b adjusted to exactly n bytes: truncated if longer,
// right-padded with fill if shorter, or returned unchanged.
func FixSize(b []byte, n int, fill byte) []byte {
	if len(b) == n {
		return b
	}
	out := make([]byte, n)
	if len(b) > n {
		copy(out, b[:n])
		return out
	}
	copy(out, b)
	for i := len(b); i < n; i++ {
		out[i] = fill
	}
	return out
}

func u32le(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func u64le(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// Reserved Agile block keys, MS-OFFCRYPTO §2.3.4.13-14.
var (
	BlockKeyVerifierHashInput = []byte{0xFE, 0xA7, 0xD2, 0x76, 0x3B, 0x4B, 0x9E, 0x79}
	BlockKeyVerifierHashValue = []byte{0xD7, 0xAA, 0x0F, 0x6D, 0x30, 0x61, 0x34, 0x4E}
	BlockKeyKeyValue          = []byte{0x14, 0x6E, 0x0B, 0xE7, 0xAB, 0xAC, 0xD0, 0xD6}
	BlockKeyHmacKey           = []byte{0x5F, 0xB2, 0xAD, 0x01, 0x0C, 0xB9, 0xE1, 0xF6}
	BlockKeyHmacValue         = []byte{0xA0, 0x67, 0x7F, 0x02, 0xB2, 0x2C, 0x84, 0x33}
)

// HashAlgorithm names a MS-OFFCRYPTO hash algorithm.
type HashAlgorithm string

const (
	HashMD5       HashAlgorithm = "MD5"
	HashSHA1      HashAlgorithm = "SHA1"
	HashSHA256    HashAlgorithm = "SHA256"
	HashSHA384    HashAlgorithm = "SHA384"
	HashSHA512    HashAlgorithm = "SHA512"
	HashRIPEMD160 HashAlgorithm = "RIPEMD160"
)

// New returns a fresh hash.Hash for the algorithm.
func (h HashAlgorithm) New() (hash.Hash, error) {
	switch h {
	case HashMD5:
		return md5.New(), nil
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA384:
		return sha512.New384(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashRIPEMD160:
		return ripemd160.New(), nil
	}
	return nil, ErrUnsupportedAlgorithm
}

// Size returns the output size in bytes for the algorithm.
func (h HashAlgorithm) Size() (int, error) {
	hh, err := h.New()
	if err != nil {
		return 0, err
	}
	return hh.Size(), nil
}

// Sum hashes the concatenation of parts.
func (h HashAlgorithm) Sum(parts ...[]byte) ([]byte, error) {
	hh, err := h.New()
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		hh.Write(p)
	}
	return hh.Sum(nil), nil
}

// CipherAlgorithm names a MS-OFFCRYPTO symmetric cipher algorithm.
type CipherAlgorithm string

const (
	CipherAES   CipherAlgorithm = "AES"
	CipherDES   CipherAlgorithm = "DES"
	Cipher3DES  CipherAlgorithm = "3DES"
	Cipher3DES2 CipherAlgorithm = "3DES112"
	CipherRC2   CipherAlgorithm = "RC2"
)

// BlockSize returns the cipher's block size in bytes.
func (c CipherAlgorithm) BlockSize() (int, error) {
	switch c {
	case CipherAES:
		return aes.BlockSize, nil
	case CipherDES, Cipher3DES, Cipher3DES2:
		return des.BlockSize, nil
	case CipherRC2:
		return rc2BlockSize, nil
	}
	return 0, ErrUnsupportedAlgorithm
}

// NewBlock constructs a cipher.Block keyed with key, truncated/padded by
// the caller to the algorithm's expected key length beforehand.
func (c CipherAlgorithm) NewBlock(key []byte) (cipher.Block, error) {
	switch c {
	case CipherAES:
		return aes.NewCipher(key)
	case CipherDES:
		return des.NewCipher(key)
	case Cipher3DES, Cipher3DES2:
		return des.NewTripleDESCipher(fix3DESKey(key))
	case CipherRC2:
		return newRC2Cipher(key)
	}
	return nil, ErrUnsupportedAlgorithm
}

// fix3DESKey expands a two-key (16 byte) 3DES-112 key into the 24-byte form
// crypto/des.NewTripleDESCipher expects, by repeating the first 8 bytes.
func fix3DESKey(key []byte) []byte {
	if len(key) == 24 {
		return key
	}
	out := make([]byte, 24)
	copy(out, FixSize(key, 16, 0x00))
	copy(out[16:], key[:8])
	return out
}

// ChainingMode names the Agile cipherChaining attribute.
type ChainingMode string

const (
	ChainCBC ChainingMode = "ChainingModeCBC"
	ChainCFB ChainingMode = "ChainingModeCFB"
)
