package offcrypto

// C2: the Agile profile -- parameterised cipher/hash/HMAC, segmented CBC
// or CFB body encryption, spin-counted key derivation.

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"hash"
)

const segmentSize = 4096

// AgileOptions parameterises an Agile-profile encryption.
type AgileOptions struct {
	Cipher    CipherAlgorithm
	Chaining  ChainingMode
	Hash      HashAlgorithm
	KeyBits   int
	SpinCount int
}

// DefaultAgileOptions returns the AES-256/SHA-512/CBC configuration used
// by conformant modern writers, spin count 100,000.
func DefaultAgileOptions() AgileOptions {
	return AgileOptions{
		Cipher:    CipherAES,
		Chaining:  ChainCBC,
		Hash:      HashSHA512,
		KeyBits:   256,
		SpinCount: 100000,
	}
}

func (o AgileOptions) validate() error {
	if _, err := o.Cipher.BlockSize(); err != nil {
		return err
	}
	if _, err := o.Hash.New(); err != nil {
		return err
	}
	if o.Chaining != ChainCBC && o.Chaining != ChainCFB {
		return ErrUnsupportedAlgorithm
	}
	if o.KeyBits <= 0 || o.KeyBits%8 != 0 {
		return ErrUnsupportedAlgorithm
	}
	return nil
}

// agileBaseHash implements the Password-to-base-hash algorithm: an
// initial hash over salt||password, then spinCount rounds of
// H(index||prev).
func agileBaseHash(h HashAlgorithm, salt, passwordUTF16 []byte, spinCount int) ([]byte, error) {
	cur, err := h.Sum(SaltPassword(salt, passwordUTF16))
	if err != nil {
		return nil, err
	}
	for i := 0; i < spinCount; i++ {
		cur, err = h.Sum(u32le(uint32(i)), cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// agileFinalKey implements block-key finalisation: H(baseHash||blockKey)
// truncated or zero-padded to keyBytes.
func agileFinalKey(h HashAlgorithm, baseHash, blockKey []byte, keyBytes int) ([]byte, error) {
	sum, err := h.Sum(baseHash, blockKey)
	if err != nil {
		return nil, err
	}
	return FixSize(sum, keyBytes, 0x00), nil
}

// agileIVFromSalt derives an IV by hashing salt||blockKey and padding
// with 0x36 to blockSize, used for the HMAC key/value IVs.
func agileIVFromSalt(h HashAlgorithm, salt, blockKey []byte, blockSize int) ([]byte, error) {
	sum, err := h.Sum(salt, blockKey)
	if err != nil {
		return nil, err
	}
	return FixSize(sum, blockSize, 0x36), nil
}

// newHMAC builds an hmac.Hash over the given MS-OFFCRYPTO hash algorithm.
func newHMAC(h HashAlgorithm, key []byte) hash.Hash {
	return hmac.New(func() hash.Hash {
		hh, _ := h.New()
		return hh
	}, key)
}

func chainEncrypt(mode ChainingMode, block cipher.Block, iv, data []byte) []byte {
	out := make([]byte, len(data))
	switch mode {
	case ChainCFB:
		cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, data)
	default:
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	}
	return out
}

func chainDecrypt(mode ChainingMode, block cipher.Block, iv, data []byte) []byte {
	out := make([]byte, len(data))
	switch mode {
	case ChainCFB:
		cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, data)
	default:
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out
}

func segmentIV(h HashAlgorithm, keyDataSalt []byte, index int, blockSize int) ([]byte, error) {
	sum, err := h.Sum(keyDataSalt, u32le(uint32(index)))
	if err != nil {
		return nil, err
	}
	return FixSize(sum, blockSize, 0x36), nil
}

// encryptBody segments cleartext into 4096-byte chunks and encrypts each
// under its own index-derived IV, in strictly increasing segment order.
func encryptBody(cleartext []byte, opts AgileOptions, keyDataSalt, contentKey []byte, blockSize int) ([]byte, error) {
	block, err := opts.Cipher.NewBlock(contentKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(cleartext)+blockSize*2)
	for off, idx := 0, 0; off < len(cleartext) || (off == 0 && len(cleartext) == 0); idx++ {
		end := off + segmentSize
		if end > len(cleartext) {
			end = len(cleartext)
		}
		seg := cleartext[off:end]
		iv, err := segmentIV(opts.Hash, keyDataSalt, idx, blockSize)
		if err != nil {
			return nil, err
		}
		padded := zeroPad(seg, blockSize)
		out = append(out, chainEncrypt(opts.Chaining, block, iv, padded)...)
		off = end
		if end == len(cleartext) {
			break
		}
	}
	return out, nil
}

func decryptBody(cipherBody []byte, opts AgileOptions, keyDataSalt, contentKey []byte, blockSize int, cleartextSize uint64) ([]byte, error) {
	block, err := opts.Cipher.NewBlock(contentKey)
	if err != nil {
		return nil, err
	}
	segCipherLen := ((segmentSize + blockSize - 1) / blockSize) * blockSize
	out := make([]byte, 0, len(cipherBody))
	for off, idx := 0, 0; off < len(cipherBody); idx++ {
		end := off + segCipherLen
		if end > len(cipherBody) {
			end = len(cipherBody)
		}
		iv, err := segmentIV(opts.Hash, keyDataSalt, idx, blockSize)
		if err != nil {
			return nil, err
		}
		out = append(out, chainDecrypt(opts.Chaining, block, iv, cipherBody[off:end])...)
		off = end
	}
	if cleartextSize > uint64(len(out)) {
		return nil, ErrMalformedEnvelope
	}
	return out[:cleartextSize], nil
}

// EncryptAgile encrypts cleartext under the Agile profile, returning the
// EncryptionInfo XML descriptor bytes and the EncryptedPackage stream
// bytes.
func EncryptAgile(cleartext []byte, password string, opts AgileOptions) (encryptionInfo, encryptedPackage []byte, err error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	blockSize, _ := opts.Cipher.BlockSize()
	keyBytes := opts.KeyBits / 8
	hashSize, _ := opts.Hash.Size()

	keyDataSalt := make([]byte, 16)
	keyEncSalt := make([]byte, 16)
	keyValue := make([]byte, keyBytes)
	verifierHashInput := make([]byte, 16)
	hmacSalt := make([]byte, 64)
	for _, b := range [][]byte{keyDataSalt, keyEncSalt, keyValue, verifierHashInput, hmacSalt} {
		if _, err := rand.Read(b); err != nil {
			return nil, nil, err
		}
	}

	pwUTF16 := PasswordBytes(password)
	baseHash, err := agileBaseHash(opts.Hash, keyEncSalt, pwUTF16, opts.SpinCount)
	if err != nil {
		return nil, nil, err
	}

	hashInputKey, err := agileFinalKey(opts.Hash, baseHash, BlockKeyVerifierHashInput, keyBytes)
	if err != nil {
		return nil, nil, err
	}
	hashValueKey, err := agileFinalKey(opts.Hash, baseHash, BlockKeyVerifierHashValue, keyBytes)
	if err != nil {
		return nil, nil, err
	}
	keyValueKey, err := agileFinalKey(opts.Hash, baseHash, BlockKeyKeyValue, keyBytes)
	if err != nil {
		return nil, nil, err
	}

	ivKeyEnc := FixSize(keyEncSalt, blockSize, 0x36)

	verifierHash, err := opts.Hash.Sum(verifierHashInput)
	if err != nil {
		return nil, nil, err
	}

	blockA, err := opts.Cipher.NewBlock(hashInputKey)
	if err != nil {
		return nil, nil, err
	}
	encVerifierHashInput := chainEncrypt(opts.Chaining, blockA, ivKeyEnc, zeroPad(verifierHashInput, blockSize))

	blockB, err := opts.Cipher.NewBlock(hashValueKey)
	if err != nil {
		return nil, nil, err
	}
	encVerifierHashValue := chainEncrypt(opts.Chaining, blockB, ivKeyEnc, zeroPad(verifierHash, blockSize))

	blockC, err := opts.Cipher.NewBlock(keyValueKey)
	if err != nil {
		return nil, nil, err
	}
	encKeyValue := chainEncrypt(opts.Chaining, blockC, ivKeyEnc, zeroPad(keyValue, blockSize))

	contentKey := FixSize(keyValue, keyBytes, 0x36)

	cipherBody, err := encryptBody(cleartext, opts, keyDataSalt, contentKey, blockSize)
	if err != nil {
		return nil, nil, err
	}
	encryptedPackage = make([]byte, 0, 8+len(cipherBody))
	encryptedPackage = append(encryptedPackage, u64le(uint64(len(cleartext)))...)
	encryptedPackage = append(encryptedPackage, cipherBody...)

	hmacKeyIV, err := agileIVFromSalt(opts.Hash, keyDataSalt, BlockKeyHmacKey, blockSize)
	if err != nil {
		return nil, nil, err
	}
	hmacValueIV, err := agileIVFromSalt(opts.Hash, keyDataSalt, BlockKeyHmacValue, blockSize)
	if err != nil {
		return nil, nil, err
	}
	blockContent, err := opts.Cipher.NewBlock(contentKey)
	if err != nil {
		return nil, nil, err
	}
	encHmacKey := chainEncrypt(opts.Chaining, blockContent, hmacKeyIV, zeroPad(hmacSalt, blockSize))

	mac := newHMAC(opts.Hash, hmacSalt)
	mac.Write(encryptedPackage)
	hmacValue := mac.Sum(nil)
	encHmacValue := chainEncrypt(opts.Chaining, blockContent, hmacValueIV, zeroPad(hmacValue, blockSize))

	desc := &agileDescriptor{
		KeyData: agileKeyData{
			SaltSize:        16,
			BlockSize:       blockSize,
			KeyBits:         opts.KeyBits,
			HashSize:        hashSize,
			CipherAlgorithm: opts.Cipher,
			CipherChaining:  opts.Chaining,
			HashAlgorithm:   opts.Hash,
			SaltValue:       keyDataSalt,
		},
		EncryptedHmacKey:   encHmacKey,
		EncryptedHmacValue: encHmacValue,
		KeyEncryptor: agilePasswordKeyEncryptor{
			SpinCount:                  opts.SpinCount,
			SaltSize:                   16,
			BlockSize:                  blockSize,
			KeyBits:                    opts.KeyBits,
			HashSize:                   hashSize,
			CipherAlgorithm:            opts.Cipher,
			CipherChaining:             opts.Chaining,
			HashAlgorithm:              opts.Hash,
			SaltValue:                  keyEncSalt,
			EncryptedVerifierHashInput: encVerifierHashInput,
			EncryptedVerifierHashValue: encVerifierHashValue,
			EncryptedKeyValue:          encKeyValue,
		},
	}
	encryptionInfo = encodeAgileEncryptionInfo(desc)
	return encryptionInfo, encryptedPackage, nil
}

// DecryptAgile verifies password and integrity, and recovers the
// cleartext package from an Agile profile EncryptionInfo/EncryptedPackage
// pair.
func DecryptAgile(encryptionInfo, encryptedPackage []byte, password string) ([]byte, error) {
	desc, err := decodeAgileEncryptionInfo(encryptionInfo)
	if err != nil {
		return nil, err
	}
	ke := desc.KeyEncryptor
	kd := desc.KeyData

	blockSize, err := ke.CipherAlgorithm.BlockSize()
	if err != nil {
		return nil, err
	}
	if _, err := ke.HashAlgorithm.New(); err != nil {
		return nil, err
	}
	if kd.CipherAlgorithm != ke.CipherAlgorithm || kd.HashAlgorithm != ke.HashAlgorithm {
		return nil, ErrUnsupportedAlgorithm
	}

	keyBytes := ke.KeyBits / 8
	pwUTF16 := PasswordBytes(password)
	baseHash, err := agileBaseHash(ke.HashAlgorithm, ke.SaltValue, pwUTF16, ke.SpinCount)
	if err != nil {
		return nil, err
	}

	hashInputKey, err := agileFinalKey(ke.HashAlgorithm, baseHash, BlockKeyVerifierHashInput, keyBytes)
	if err != nil {
		return nil, err
	}
	hashValueKey, err := agileFinalKey(ke.HashAlgorithm, baseHash, BlockKeyVerifierHashValue, keyBytes)
	if err != nil {
		return nil, err
	}
	keyValueKey, err := agileFinalKey(ke.HashAlgorithm, baseHash, BlockKeyKeyValue, keyBytes)
	if err != nil {
		return nil, err
	}

	ivKeyEnc := FixSize(ke.SaltValue, blockSize, 0x36)

	blockA, err := ke.CipherAlgorithm.NewBlock(hashInputKey)
	if err != nil {
		return nil, err
	}
	verifierHashInput := chainDecrypt(ke.CipherChaining, blockA, ivKeyEnc, ke.EncryptedVerifierHashInput)
	verifierHashInput = FixSize(verifierHashInput, 16, 0)

	blockB, err := ke.CipherAlgorithm.NewBlock(hashValueKey)
	if err != nil {
		return nil, err
	}
	verifierHashDec := chainDecrypt(ke.CipherChaining, blockB, ivKeyEnc, ke.EncryptedVerifierHashValue)

	wantHash, err := ke.HashAlgorithm.Sum(verifierHashInput)
	if err != nil {
		return nil, err
	}
	if len(verifierHashDec) < len(wantHash) || subtle.ConstantTimeCompare(wantHash, verifierHashDec[:len(wantHash)]) != 1 {
		return nil, ErrInvalidPassword
	}

	blockC, err := ke.CipherAlgorithm.NewBlock(keyValueKey)
	if err != nil {
		return nil, err
	}
	keyValueDec := chainDecrypt(ke.CipherChaining, blockC, ivKeyEnc, ke.EncryptedKeyValue)
	contentKey := FixSize(keyValueDec, keyBytes, 0x36)

	if len(encryptedPackage) < 8 {
		return nil, ErrMalformedEnvelope
	}
	cleartextSize := binary.LittleEndian.Uint64(encryptedPackage[:8])
	cipherBody := encryptedPackage[8:]

	cleartext, err := decryptBody(cipherBody, AgileOptions{Cipher: ke.CipherAlgorithm, Chaining: ke.CipherChaining, Hash: ke.HashAlgorithm}, kd.SaltValue, contentKey, blockSize, cleartextSize)
	if err != nil {
		return nil, err
	}

	hmacKeyIV, err := agileIVFromSalt(kd.HashAlgorithm, kd.SaltValue, BlockKeyHmacKey, blockSize)
	if err != nil {
		return nil, err
	}
	hmacValueIV, err := agileIVFromSalt(kd.HashAlgorithm, kd.SaltValue, BlockKeyHmacValue, blockSize)
	if err != nil {
		return nil, err
	}
	blockContent, err := kd.CipherAlgorithm.NewBlock(contentKey)
	if err != nil {
		return nil, err
	}
	hmacSaltDec := chainDecrypt(kd.CipherChaining, blockContent, hmacKeyIV, desc.EncryptedHmacKey)
	hmacSaltDec = FixSize(hmacSaltDec, 64, 0)
	hmacValueDec := chainDecrypt(kd.CipherChaining, blockContent, hmacValueIV, desc.EncryptedHmacValue)

	mac := newHMAC(kd.HashAlgorithm, hmacSaltDec)
	mac.Write(encryptedPackage)
	recomputed := mac.Sum(nil)
	if len(hmacValueDec) < len(recomputed) || subtle.ConstantTimeCompare(recomputed, hmacValueDec[:len(recomputed)]) != 1 {
		return nil, ErrIntegrityFailure
	}

	return cleartext, nil
}
