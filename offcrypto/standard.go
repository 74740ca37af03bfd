package offcrypto

// C3: the Standard profile — AES-ECB with SHA-1 iterated key derivation,
// 50,000 spin rounds, no integrity check.

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
)

const standardSpinCount = 50000

func ecbEncrypt(block cipher.Block, data []byte) []byte {
	bs := block.BlockSize()
	out := make([]byte, len(data))
	for off := 0; off+bs <= len(data); off += bs {
		block.Encrypt(out[off:off+bs], data[off:off+bs])
	}
	return out
}

func ecbDecrypt(block cipher.Block, data []byte) []byte {
	bs := block.BlockSize()
	out := make([]byte, len(data))
	for off := 0; off+bs <= len(data); off += bs {
		block.Decrypt(out[off:off+bs], data[off:off+bs])
	}
	return out
}

// zeroPad right-pads data with zero bytes to a multiple of blockSize.
func zeroPad(data []byte, blockSize int) []byte {
	rem := len(data) % blockSize
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data)+blockSize-rem)
	copy(out, data)
	return out
}

// standardDeriveKey implements MS-OFFCRYPTO's Standard DeriveKey: 50,000
// rounds of SHA-1 spinning, then an intermediate-buffer expansion to
// reach the target key size. When the SHA-1 digest (160 bits) already
// exceeds the requested key size, X1 alone (truncated/zero-padded) is
// used; otherwise X1 and X2 (the 0x36- and 0x5C-padded variants) are
// concatenated, which is always wide enough (40 bytes) for AES-192/256
// without needing zero padding.
func standardDeriveKey(salt, passwordUTF16 []byte, keyBits int) []byte {
	h := sha1.Sum(SaltPassword(salt, passwordUTF16))
	cur := h[:]
	for i := 0; i < standardSpinCount; i++ {
		sum := sha1.Sum(append(u32le(uint32(i)), cur...))
		cur = sum[:]
	}
	hFinal := sha1.Sum(append(cur, u32le(0)...))

	d1 := make([]byte, 64)
	for i := range d1 {
		d1[i] = 0x36
	}
	for i := 0; i < len(hFinal); i++ {
		d1[i] ^= hFinal[i]
	}
	x1 := sha1.Sum(d1)

	keyBytes := keyBits / 8
	hashBits := len(hFinal) * 8
	if hashBits > keyBits {
		return FixSize(x1[:], keyBytes, 0x00)
	}

	d2 := make([]byte, 64)
	for i := range d2 {
		d2[i] = 0x5C
	}
	for i := 0; i < len(hFinal); i++ {
		d2[i] ^= hFinal[i]
	}
	x2 := sha1.Sum(d2)

	combined := append(append([]byte(nil), x1[:]...), x2[:]...)
	return FixSize(combined, keyBytes, 0x00)
}

// EncryptStandard encrypts cleartext under the Standard profile, returning
// the EncryptionInfo descriptor bytes and the EncryptedPackage stream
// bytes (u64le size || ciphertext).
func EncryptStandard(cleartext []byte, password string, alg StandardAlgorithm) (encryptionInfo, encryptedPackage []byte, err error) {
	keyBits, err := alg.keyBits()
	if err != nil {
		return nil, nil, err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}
	pwUTF16 := PasswordBytes(password)
	key := standardDeriveKey(salt, pwUTF16, keyBits)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	verifier := make([]byte, 16)
	if _, err := rand.Read(verifier); err != nil {
		return nil, nil, err
	}
	verifierHash := sha1.Sum(verifier)

	encVerifier := ecbEncrypt(block, verifier)
	encVerifierHash := ecbEncrypt(block, zeroPad(verifierHash[:], aes.BlockSize))

	encryptionInfo, err = encodeStandardDescriptor(standardDescriptor{
		Algorithm:             alg,
		Salt:                  salt,
		EncryptedVerifier:     encVerifier,
		EncryptedVerifierHash: encVerifierHash,
	})
	if err != nil {
		return nil, nil, err
	}

	body := zeroPad(cleartext, aes.BlockSize)
	cipherBody := ecbEncrypt(block, body)

	out := make([]byte, 0, 8+len(cipherBody))
	out = append(out, u64le(uint64(len(cleartext)))...)
	out = append(out, cipherBody...)
	return encryptionInfo, out, nil
}

// DecryptStandard validates password and recovers the cleartext package
// from a Standard profile EncryptionInfo/EncryptedPackage pair.
func DecryptStandard(encryptionInfo, encryptedPackage []byte, password string) ([]byte, error) {
	desc, err := decodeStandardDescriptor(encryptionInfo)
	if err != nil {
		return nil, err
	}
	keyBits, err := desc.Algorithm.keyBits()
	if err != nil {
		return nil, err
	}

	pwUTF16 := PasswordBytes(password)
	key := standardDeriveKey(desc.Salt, pwUTF16, keyBits)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	verifier := ecbDecrypt(block, desc.EncryptedVerifier)
	verifierHashBlock := ecbDecrypt(block, desc.EncryptedVerifierHash[:aes.BlockSize])
	wantHash := sha1.Sum(verifier)
	if subtle.ConstantTimeCompare(wantHash[:aes.BlockSize], verifierHashBlock) != 1 {
		return nil, ErrInvalidPassword
	}

	if len(encryptedPackage) < 8 {
		return nil, ErrMalformedEnvelope
	}
	cleartextSize := binary.LittleEndian.Uint64(encryptedPackage[:8])
	cipherBody := encryptedPackage[8:]
	if len(cipherBody)%aes.BlockSize != 0 {
		return nil, ErrMalformedEnvelope
	}
	plain := ecbDecrypt(block, cipherBody)
	if cleartextSize > uint64(len(plain)) {
		return nil, ErrMalformedEnvelope
	}
	return plain[:cleartextSize], nil
}
