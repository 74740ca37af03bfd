// Package cfb implements the OLE2 Compound File Binary File Format, used
// as the outer container for MS-OFFCRYPTO encrypted Office documents.
package cfb

// https://docs.microsoft.com/en-us/openspecs/windows_protocols/ms-cfb/53989ce4-7b05-4f8d-829b-d08d6148375b
// Note for myself:
//   Storage = Directory
//   Stream = File

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/ioutil"
	"log"
	"unicode/utf16"
)

const fullAssertions = true

// Debug enables verbose tracing of the sector/directory walk.
var Debug bool

const (
	secFree       uint32 = 0xFFFFFFFF // FREESECT
	secEndOfChain uint32 = 0xFFFFFFFE // ENDOFCHAIN
	secFAT        uint32 = 0xFFFFFFFD // FATSECT
	secDIFAT      uint32 = 0xFFFFFFFC // DIFSECT
	secReserved   uint32 = 0xFFFFFFFB
	secMaxRegular uint32 = 0xFFFFFFFA // MAXREGSECT
)

// Signature is the fixed 8-byte magic at offset 0 of every CFB file.
var Signature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ErrNotCFB is returned when the source does not begin with the CFB magic.
var ErrNotCFB = errors.New("cfb: not a compound file binary container")

// IsCFB reports whether data begins with the CFB signature.
func IsCFB(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return bytes.Equal(data[:8], Signature[:])
}

// header of the Compound File MUST be at the beginning of the file (offset 0).
type header struct {
	Signature                    uint64      // MUST be 0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1.
	ClassID                      [2]uint64   // Reserved, MUST be all zeroes (CLSID_NULL).
	MinorVersion                 uint16      // SHOULD be 0x003E.
	MajorVersion                 uint16      // MUST be 0x0003 or 0x0004.
	ByteOrder                    uint16      // MUST be 0xFFFE.
	SectorShift                  uint16      // 0x0009 for v3, 0x000c for v4.
	MiniSectorShift              uint16      // MUST be 0x0006.
	Reserved1                    [6]byte     // MUST be all zeroes.
	NumDirectorySectors          int32       // MUST be 0 for major version 3.
	NumFATSectors                int32       // count of FAT sectors.
	FirstDirectorySectorLocation uint32      // starting sector of the directory stream.
	TransactionSignature         int32       // unused here, MUST be 0.
	MiniStreamCutoffSize         int32       // MUST be 0x00001000.
	FirstMiniFATSectorLocation   uint32      // starting sector of the mini FAT.
	NumMiniFATSectors            int32       // count of mini FAT sectors.
	FirstDIFATSectorLocation     uint32      // starting sector of the DIFAT.
	NumDIFATSectors              int32       // count of DIFAT sectors.
	DIFAT                        [109]uint32 // first 109 FAT sector locations.
}

type objectType byte

const (
	typeUnknown     objectType = 0x00
	typeStorage     objectType = 0x01
	typeStream      objectType = 0x02
	typeRootStorage objectType = 0x05
)

type directoryEntry struct {
	Name                   [32]uint16 // 32 utf16 characters
	NameByteLen            uint16     // length of Name in bytes, including the null terminator
	ObjectType             objectType
	ColorFlag              byte   // 0=red, 1=black
	LeftSiblingID          uint32 // stream ids
	RightSiblingID         uint32
	ChildID                uint32
	ClassID                [2]uint64 // GUID
	StateBits              uint32
	CreationTime           int64
	ModifiedTime           int64
	StartingSectorLocation uint32
	StreamSize             uint64
}

func (d *directoryEntry) String() string {
	if (d.NameByteLen&1) == 1 || d.NameByteLen > 64 || d.NameByteLen == 0 {
		return ""
	}
	r16 := utf16.Decode(d.Name[:int(d.NameByteLen)/2])
	// trim off null terminator
	return string(r16[:len(r16)-1])
}

// doc is the concrete implementation of Document.
type doc struct {
	data []byte

	header *header
	dir    []*directoryEntry

	fat     []uint32
	minifat []uint32

	ministreamstart uint32
	ministreamsize  uint32
}

func (d *doc) load(rx io.Reader) error {
	var err error
	d.data, err = ioutil.ReadAll(rx)
	if err != nil {
		return err
	}
	if !IsCFB(d.data) {
		return ErrNotCFB
	}
	br := bytes.NewReader(d.data)

	h := &header{}
	err = binary.Read(br, binary.LittleEndian, h)
	if err != nil {
		return err
	}
	if h.ByteOrder != 0xFFFE {
		return ErrNotCFB
	}
	if fullAssertions {
		if h.ClassID[0] != 0 || h.ClassID[1] != 0 {
			return errors.New("cfb: invalid CLSID")
		}
		if h.MajorVersion != 3 && h.MajorVersion != 4 {
			return errors.New("cfb: unknown major version")
		}
		for _, v := range h.Reserved1 {
			if v != 0 {
				return errors.New("cfb: reserved section is non-zero")
			}
		}
		if h.MajorVersion == 3 && h.SectorShift != 9 {
			return errors.New("cfb: invalid sector size")
		}
		if h.MajorVersion == 4 && h.SectorShift != 12 {
			return errors.New("cfb: invalid sector size")
		}
		if h.MiniSectorShift != 6 {
			return errors.New("cfb: invalid mini sector size")
		}
		if h.MiniStreamCutoffSize != 0x00001000 {
			return errors.New("cfb: invalid mini sector cutoff")
		}
	}
	d.header = h

	numFATentries := 1 << (h.SectorShift - 2)
	le := binary.LittleEndian
	d.fat = make([]uint32, 0, numFATentries*int(1+d.header.NumFATSectors))
	d.minifat = make([]uint32, 0, numFATentries*int(1+h.NumMiniFATSectors))

	// step 1: read the DIFAT sector list (the 109 inline entries, then any chained DIFAT sectors)
	for i := 0; i < 109; i++ {
		sid := h.DIFAT[i]
		if sid == secFree {
			break
		}
		sector, err := d.sectorAt(sid)
		if err != nil {
			return err
		}
		for j := 0; j < numFATentries; j++ {
			d.fat = append(d.fat, le.Uint32(sector))
			sector = sector[4:]
		}
	}
	if h.NumDIFATSectors > 0 {
		sid1 := h.FirstDIFATSectorLocation
		for sid1 != secEndOfChain {
			difatSector, err := d.sectorAt(sid1)
			if err != nil {
				return err
			}
			for i := 0; i < numFATentries-1; i++ {
				sid2 := le.Uint32(difatSector)
				difatSector = difatSector[4:]
				if sid2 == secFree || sid2 == secEndOfChain {
					continue
				}
				sector, err := d.sectorAt(sid2)
				if err != nil {
					return err
				}
				for j := 0; j < numFATentries; j++ {
					d.fat = append(d.fat, le.Uint32(sector))
					sector = sector[4:]
				}
			}
			sid1 = le.Uint32(difatSector)
		}
	}

	// step 2: read the mini FAT
	sid := h.FirstMiniFATSectorLocation
	for sid != secEndOfChain && sid != secFree {
		sector, err := d.sectorAt(sid)
		if err != nil {
			return err
		}
		for j := 0; j < numFATentries; j++ {
			d.minifat = append(d.minifat, le.Uint32(sector))
			sector = sector[4:]
		}
		if len(d.minifat) >= int(h.NumMiniFATSectors)*numFATentries {
			break
		}
		if int(sid) >= len(d.fat) {
			break
		}
		sid = d.fat[sid]
	}

	// step 3: read the Directory Entries
	return d.buildDirs()
}

func (d *doc) sectorAt(sid uint32) ([]byte, error) {
	secSize := int64(1) << int64(d.header.SectorShift)
	offs := int64(1+sid) << int64(d.header.SectorShift)
	if offs < 0 || offs+secSize > int64(len(d.data)) {
		return nil, errors.New("cfb: sector reference out of range")
	}
	return d.data[offs : offs+secSize], nil
}

func (d *doc) buildDirs() error {
	h := d.header
	le := binary.LittleEndian

	sid := h.FirstDirectorySectorLocation
	entrySize := 128
	for sid != secEndOfChain && sid != secFree {
		sector, err := d.sectorAt(sid)
		if err != nil {
			return err
		}
		for off := 0; off+entrySize <= len(sector); off += entrySize {
			r := bytes.NewReader(sector[off : off+entrySize])
			dirent := &directoryEntry{}
			if err := binary.Read(r, le, dirent); err != nil {
				return err
			}
			if h.MajorVersion == 3 {
				dirent.StreamSize &= 0xFFFFFFFF
			}
			if dirent.ObjectType == typeRootStorage {
				d.ministreamstart = dirent.StartingSectorLocation
				d.ministreamsize = uint32(dirent.StreamSize)
			}
			d.dir = append(d.dir, dirent)
		}
		if int(sid) >= len(d.fat) {
			break
		}
		sid = d.fat[sid]
	}
	return nil
}

func (d *doc) getStreamReader(sid uint32, size uint64) (*SliceReader, error) {
	streamData := make([][]byte, 0, 1+(size>>d.header.SectorShift))
	for sid != secEndOfChain && sid != secFree && size > 0 {
		slice, err := d.sectorAt(sid)
		if err != nil {
			return nil, err
		}
		if size < uint64(len(slice)) {
			slice = slice[:size]
			size = 0
		} else {
			size -= uint64(len(slice))
		}
		streamData = append(streamData, slice)
		if size == 0 {
			break
		}
		if int(sid) >= len(d.fat) {
			return nil, errors.New("cfb: incomplete read")
		}
		sid = d.fat[sid]
	}
	if size != 0 {
		return nil, errors.New("cfb: incomplete read")
	}
	return &SliceReader{Data: streamData}, nil
}

func (d *doc) getMiniStreamReader(sid uint32, size uint64) (*SliceReader, error) {
	fatStreamData := make([][]byte, 0, 1+(d.ministreamsize>>d.header.SectorShift))
	fsid := d.ministreamstart
	fsize := uint64(d.ministreamsize)
	for fsid != secEndOfChain && fsid != secFree && fsize > 0 {
		slice, err := d.sectorAt(fsid)
		if err != nil {
			return nil, err
		}
		if fsize < uint64(len(slice)) {
			slice = slice[:fsize]
			fsize = 0
		} else {
			fsize -= uint64(len(slice))
		}
		fatStreamData = append(fatStreamData, slice)
		if int(fsid) >= len(d.fat) {
			break
		}
		fsid = d.fat[fsid]
	}
	flat := make([]byte, 0, len(fatStreamData)*int(1<<d.header.SectorShift))
	for _, s := range fatStreamData {
		flat = append(flat, s...)
	}

	streamData := make([][]byte, 0, 1+(size>>d.header.MiniSectorShift))
	miniSecSize := int64(1) << int64(d.header.MiniSectorShift)
	for sid != secEndOfChain && sid != secFree && size > 0 {
		offs := int64(sid) * miniSecSize
		if offs < 0 || offs+miniSecSize > int64(len(flat)) {
			return nil, errors.New("cfb: mini stream reference out of range")
		}
		slice := flat[offs : offs+miniSecSize]
		if size < uint64(len(slice)) {
			slice = slice[:size]
			size = 0
		} else {
			size -= uint64(len(slice))
		}
		streamData = append(streamData, slice)
		if int(sid) >= len(d.minifat) {
			break
		}
		sid = d.minifat[sid]
	}
	if Debug {
		log.Printf("cfb: mini stream read %d slices", len(streamData))
	}
	return &SliceReader{Data: streamData}, nil
}

func (d *doc) streamReader(e *directoryEntry) (io.ReadSeeker, error) {
	if e.StreamSize == 0 {
		return &SliceReader{}, nil
	}
	if e.StreamSize < uint64(d.header.MiniStreamCutoffSize) {
		return d.getMiniStreamReader(e.StartingSectorLocation, e.StreamSize)
	}
	return d.getStreamReader(e.StartingSectorLocation, e.StreamSize)
}
