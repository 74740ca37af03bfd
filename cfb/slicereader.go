package cfb

import (
	"errors"
	"io"
)

// SliceReader presents a sequence of byte slices (the sectors that make up
// a stream) as a single io.ReadSeeker, without copying them into one
// contiguous buffer.
type SliceReader struct {
	Data   [][]byte
	Index  int
	Offset int
}

func (s *SliceReader) totalLen() int64 {
	var n int64
	for _, b := range s.Data {
		n += int64(len(b))
	}
	return n
}

func (s *SliceReader) posOf(index, offset int) int64 {
	var n int64
	for i := 0; i < index; i++ {
		n += int64(len(s.Data[i]))
	}
	return n + int64(offset)
}

func (s *SliceReader) Read(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		if s.Index >= len(s.Data) {
			if total > 0 {
				return total, nil
			}
			return 0, io.EOF
		}
		cur := s.Data[s.Index]
		n := copy(b[total:], cur[s.Offset:])
		total += n
		s.Offset += n
		if s.Offset >= len(cur) {
			s.Offset = 0
			s.Index++
		}
		if n == 0 && s.Index >= len(s.Data) {
			break
		}
	}
	return total, nil
}

// Seek implements io.Seeker over the logical concatenation of Data.
func (s *SliceReader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.posOf(s.Index, s.Offset)
	case io.SeekEnd:
		base = s.totalLen()
	default:
		return 0, errors.New("cfb: invalid whence")
	}
	target := base + offset
	if target < 0 {
		return 0, errors.New("cfb: negative seek position")
	}
	pos := target
	for i, b := range s.Data {
		if pos < int64(len(b)) {
			s.Index = i
			s.Offset = int(pos)
			return target, nil
		}
		pos -= int64(len(b))
	}
	s.Index = len(s.Data)
	s.Offset = 0
	return target, nil
}
