package offcrypto

// RC2 (RFC 2268) has no implementation in the standard library or in any
// third-party module present in this module's dependency graph, so it is
// hand-rolled here the same way this codebase hand-rolls other legacy
// block ciphers when the ecosystem doesn't carry one: small and
// self-contained, implemented directly in-package.

import "fmt"

const rc2BlockSize = 8

var rc2PiTable = [256]byte{
	217, 120, 249, 196, 25, 221, 181, 237, 40, 233, 253, 121, 74, 160, 216, 157,
	198, 126, 55, 131, 43, 118, 83, 142, 98, 76, 100, 136, 68, 139, 251, 162,
	23, 154, 89, 245, 135, 179, 79, 19, 97, 69, 109, 141, 9, 129, 125, 50,
	189, 143, 64, 235, 134, 183, 123, 11, 240, 149, 33, 34, 92, 107, 78, 130,
	84, 214, 101, 147, 206, 96, 178, 28, 115, 86, 192, 20, 167, 140, 241, 220,
	18, 117, 202, 31, 59, 190, 228, 209, 66, 61, 212, 48, 163, 60, 182, 38,
	111, 191, 14, 218, 70, 105, 7, 87, 39, 242, 29, 155, 188, 148, 67, 3,
	248, 17, 199, 246, 144, 239, 62, 231, 6, 195, 213, 47, 200, 102, 30, 215,
	8, 232, 234, 222, 128, 82, 238, 247, 132, 170, 114, 172, 53, 77, 106, 42,
	150, 26, 210, 113, 90, 21, 73, 116, 75, 159, 208, 94, 4, 24, 164, 236,
	194, 224, 65, 110, 15, 81, 203, 204, 36, 145, 175, 80, 161, 244, 112, 57,
	153, 124, 58, 133, 35, 184, 180, 122, 252, 2, 54, 91, 37, 85, 151, 49,
	45, 93, 250, 152, 227, 138, 146, 174, 5, 223, 41, 16, 103, 108, 186, 201,
	211, 0, 230, 207, 225, 158, 168, 44, 99, 22, 1, 63, 88, 226, 137, 169,
	13, 56, 52, 27, 171, 51, 255, 176, 187, 72, 12, 95, 185, 177, 205, 46,
	197, 243, 219, 71, 229, 165, 156, 119, 10, 166, 32, 104, 254, 127, 193, 173,
}

type rc2Cipher struct {
	key [64]uint16
}

func newRC2Cipher(key []byte) (*rc2Cipher, error) {
	if len(key) == 0 || len(key) > 128 {
		return nil, fmt.Errorf("offcrypto: invalid RC2 key length %d", len(key))
	}
	c := &rc2Cipher{}
	c.expand(key, len(key)*8)
	return c, nil
}

func (c *rc2Cipher) expand(key []byte, effectiveBits int) {
	var l [128]byte
	copy(l[:], key)
	t := len(key)
	for i := t; i < 128; i++ {
		l[i] = rc2PiTable[(int(l[i-1])+int(l[i-t]))&0xFF]
	}

	t8 := (effectiveBits + 7) / 8
	tm := byte(255 % (int(1) << uint(8-(8*t8-effectiveBits))))
	l[128-t8] = rc2PiTable[l[128-t8]&tm]
	for i := 127 - t8; i >= 0; i-- {
		l[i] = rc2PiTable[l[i+1]^l[i+t8]]
	}

	for i := 0; i < 64; i++ {
		c.key[i] = uint16(l[2*i]) | uint16(l[2*i+1])<<8
	}
}

func (c *rc2Cipher) BlockSize() int { return rc2BlockSize }

func rol16(v uint16, n uint) uint16 { return (v << n) | (v >> (16 - n)) }
func ror16(v uint16, n uint) uint16 { return (v >> n) | (v << (16 - n)) }

func (c *rc2Cipher) Encrypt(dst, src []byte) {
	r := [4]uint16{
		uint16(src[0]) | uint16(src[1])<<8,
		uint16(src[2]) | uint16(src[3])<<8,
		uint16(src[4]) | uint16(src[5])<<8,
		uint16(src[6]) | uint16(src[7])<<8,
	}
	j := 0
	mix := func() {
		r[0] += c.key[j] + (r[3] & r[2]) + (^r[3] & r[1])
		r[0] = rol16(r[0], 1)
		j++
		r[1] += c.key[j] + (r[0] & r[3]) + (^r[0] & r[2])
		r[1] = rol16(r[1], 2)
		j++
		r[2] += c.key[j] + (r[1] & r[0]) + (^r[1] & r[3])
		r[2] = rol16(r[2], 3)
		j++
		r[3] += c.key[j] + (r[2] & r[1]) + (^r[2] & r[0])
		r[3] = rol16(r[3], 5)
		j++
	}
	mash := func() {
		r[0] += c.key[r[3]&63]
		r[1] += c.key[r[0]&63]
		r[2] += c.key[r[1]&63]
		r[3] += c.key[r[2]&63]
	}

	for i := 0; i < 5; i++ {
		mix()
	}
	mash()
	for i := 0; i < 6; i++ {
		mix()
	}
	mash()
	for i := 0; i < 5; i++ {
		mix()
	}

	for i, w := range r {
		dst[i*2] = byte(w)
		dst[i*2+1] = byte(w >> 8)
	}
}

func (c *rc2Cipher) Decrypt(dst, src []byte) {
	r := [4]uint16{
		uint16(src[0]) | uint16(src[1])<<8,
		uint16(src[2]) | uint16(src[3])<<8,
		uint16(src[4]) | uint16(src[5])<<8,
		uint16(src[6]) | uint16(src[7])<<8,
	}
	j := 63
	rmix := func() {
		r[3] = ror16(r[3], 5)
		r[3] -= c.key[j] + (r[2] & r[1]) + (^r[2] & r[0])
		j--
		r[2] = ror16(r[2], 3)
		r[2] -= c.key[j] + (r[1] & r[0]) + (^r[1] & r[3])
		j--
		r[1] = ror16(r[1], 2)
		r[1] -= c.key[j] + (r[0] & r[3]) + (^r[0] & r[2])
		j--
		r[0] = ror16(r[0], 1)
		r[0] -= c.key[j] + (r[3] & r[2]) + (^r[3] & r[1])
		j--
	}
	rmash := func() {
		r[3] -= c.key[r[2]&63]
		r[2] -= c.key[r[1]&63]
		r[1] -= c.key[r[0]&63]
		r[0] -= c.key[r[3]&63]
	}

	for i := 0; i < 5; i++ {
		rmix()
	}
	rmash()
	for i := 0; i < 6; i++ {
		rmix()
	}
	rmash()
	for i := 0; i < 5; i++ {
		rmix()
	}

	for i, w := range r {
		dst[i*2] = byte(w)
		dst[i*2+1] = byte(w >> 8)
	}
}
