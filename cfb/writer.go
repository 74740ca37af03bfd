package cfb

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"unicode/utf16"
)

// Node describes one entry in the storage tree handed to Write. A Node
// with Children != nil (even if empty) is a storage; otherwise it is a
// stream holding Data.
type Node struct {
	Name     string
	Data     []byte
	Children []*Node
}

// Stream constructs a leaf stream node.
func Stream(name string, data []byte) *Node {
	return &Node{Name: name, Data: data}
}

// Storage constructs a storage node with the given children.
func Storage(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children}
}

const (
	sectorSize   = 512
	dirEntrySize = 128
	fatPerSector = sectorSize / 4
)

const (
	miniSectorSize   = 64
	miniStreamCutoff = 0x1000
)

// buildEntry is the mutable, indexable form of a directory entry during
// tree construction, before sector assignment is known.
type buildEntry struct {
	name       string
	isStorage  bool
	data       []byte
	children   []int // indices into the flat entry list, in original order
	left       uint32
	right      uint32
	child      uint32
	startSector uint32
	streamSize  uint64
	mini        bool // startSector indexes the ministream, not the regular FAT
}

// cfbNameLess implements the MS-CFB directory ordering: shorter names
// first, then case-insensitive UTF-16 codepoint order.
func cfbNameLess(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	if len(ua) != len(ub) {
		return len(ua) < len(ub)
	}
	for i := range ua {
		ca, cb := toUpperUTF16(ua[i]), toUpperUTF16(ub[i])
		if ca != cb {
			return ca < cb
		}
	}
	return false
}

func toUpperUTF16(c uint16) uint16 {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// Write serialises a storage tree (rooted implicitly at "Root Entry" with
// the given top-level children) as a version-3 OLE2 Compound File Binary
// document.
func Write(w io.Writer, children []*Node) error {
	entries := []*buildEntry{{name: "Root Entry", isStorage: true, left: secFree, right: secFree, child: secFree}}
	rootIdx := 0
	entries = flattenTree(entries, rootIdx, children)

	linkSiblings(entries)

	// Every non-empty stream shorter than the mini-stream cutoff is
	// packed into the root's ministream instead of getting its own
	// regular-sector chain, per MS-CFB. Build that packing first so its
	// sector counts feed into the same FAT-describes-itself fixed point
	// as everything else.
	miniFAT, ministreamData := packMiniStreams(entries, rootIdx)

	dataSectorCounts := make([]int, len(entries))
	totalDataSectors := 0
	for i, e := range entries {
		if e.isStorage || i == rootIdx || e.mini || len(e.data) == 0 {
			continue
		}
		n := sectorsFor(len(e.data), sectorSize)
		dataSectorCounts[i] = n
		totalDataSectors += n
	}

	numDirEntries := len(entries)
	entriesPerSector := sectorSize / dirEntrySize
	dirSectors := (numDirEntries + entriesPerSector - 1) / entriesPerSector
	if dirSectors == 0 {
		dirSectors = 1
	}

	miniStreamSectors := sectorsFor(len(ministreamData), sectorSize)
	numMiniFATSectors := (len(miniFAT) + fatPerSector - 1) / fatPerSector

	numFATSectors, numDIFATSectors := computeFATLayout(dirSectors + totalDataSectors + miniStreamSectors + numMiniFATSectors)

	// sector index assignment
	sector := uint32(0)
	fatSectorStart := sector
	sector += uint32(numFATSectors)
	difatSectorStart := sector
	sector += uint32(numDIFATSectors)
	dirSectorStart := sector
	sector += uint32(dirSectors)
	miniFATSectorStart := sector
	sector += uint32(numMiniFATSectors)
	miniStreamSectorStart := sector
	sector += uint32(miniStreamSectors)
	dataSectorStart := sector
	sector += uint32(totalDataSectors)
	totalSectors := sector

	fat := make([]uint32, totalSectors)
	for i := range fat {
		fat[i] = secFree
	}
	for i := uint32(0); i < uint32(numFATSectors); i++ {
		fat[fatSectorStart+i] = secFAT
	}
	for i := uint32(0); i < uint32(numDIFATSectors); i++ {
		fat[difatSectorStart+i] = secDIFAT
	}
	chainRun(fat, dirSectorStart, dirSectors)
	chainRun(fat, miniFATSectorStart, numMiniFATSectors)
	chainRun(fat, miniStreamSectorStart, miniStreamSectors)

	curData := dataSectorStart
	for i, e := range entries {
		n := dataSectorCounts[i]
		if n == 0 {
			continue
		}
		e.startSector = curData
		e.streamSize = uint64(len(e.data))
		chainRun(fat, curData, n)
		curData += uint32(n)
	}

	if miniStreamSectors > 0 {
		entries[rootIdx].startSector = miniStreamSectorStart
		entries[rootIdx].streamSize = uint64(len(ministreamData))
	} else {
		entries[rootIdx].startSector = secEndOfChain
		entries[rootIdx].streamSize = 0
	}

	// header
	h := &header{
		Signature:                    0xe11ab1a1e011cfd0,
		MinorVersion:                 0x003E,
		MajorVersion:                 3,
		ByteOrder:                    0xFFFE,
		SectorShift:                  9,
		MiniSectorShift:              6,
		NumDirectorySectors:          0,
		NumFATSectors:                int32(numFATSectors),
		FirstDirectorySectorLocation: dirSectorStart,
		MiniStreamCutoffSize:         miniStreamCutoff,
		FirstMiniFATSectorLocation:   secEndOfChain,
		NumMiniFATSectors:            int32(numMiniFATSectors),
		FirstDIFATSectorLocation:     secEndOfChain,
		NumDIFATSectors:              int32(numDIFATSectors),
	}
	if numMiniFATSectors > 0 {
		h.FirstMiniFATSectorLocation = miniFATSectorStart
	}
	for i := range h.DIFAT {
		h.DIFAT[i] = secFree
	}
	if numDIFATSectors > 0 {
		h.FirstDIFATSectorLocation = difatSectorStart
	}
	for i := 0; i < numFATSectors && i < 109; i++ {
		h.DIFAT[i] = fatSectorStart + uint32(i)
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return err
	}

	// FAT sectors
	for s := 0; s < numFATSectors; s++ {
		sectorBuf := make([]uint32, fatPerSector)
		for i := range sectorBuf {
			sectorBuf[i] = secFree
		}
		for i := 0; i < fatPerSector; i++ {
			idx := s*fatPerSector + i
			if idx < len(fat) {
				sectorBuf[i] = fat[idx]
			}
		}
		writeUint32Sector(buf, sectorBuf)
	}

	// DIFAT sectors (only needed when > 109 FAT sectors; extra 109+127*k entries)
	if numDIFATSectors > 0 {
		extra := numFATSectors - 109
		for s := 0; s < numDIFATSectors; s++ {
			sectorBuf := make([]uint32, fatPerSector)
			for i := range sectorBuf {
				sectorBuf[i] = secFree
			}
			for i := 0; i < fatPerSector-1; i++ {
				idx := s*(fatPerSector-1) + i
				if idx < extra {
					sectorBuf[i] = fatSectorStart + uint32(109+idx)
				}
			}
			if s == numDIFATSectors-1 {
				sectorBuf[fatPerSector-1] = secEndOfChain
			} else {
				sectorBuf[fatPerSector-1] = difatSectorStart + uint32(s) + 1
			}
			writeUint32Sector(buf, sectorBuf)
		}
	}

	// directory sectors
	dirBytes := make([]byte, dirSectors*sectorSize)
	dw := bytes.NewBuffer(dirBytes[:0])
	for _, e := range entries {
		writeDirEntry(dw, e)
	}
	for dw.Len() < len(dirBytes) {
		dw.WriteByte(0)
	}
	buf.Write(dirBytes)

	// mini FAT sectors
	if numMiniFATSectors > 0 {
		for s := 0; s < numMiniFATSectors; s++ {
			sectorBuf := make([]uint32, fatPerSector)
			for i := range sectorBuf {
				sectorBuf[i] = secFree
			}
			for i := 0; i < fatPerSector; i++ {
				idx := s*fatPerSector + i
				if idx < len(miniFAT) {
					sectorBuf[i] = miniFAT[idx]
				}
			}
			writeUint32Sector(buf, sectorBuf)
		}
	}

	// mini stream data (packed small streams, root-owned)
	if miniStreamSectors > 0 {
		buf.Write(ministreamData)
		pad := miniStreamSectors*sectorSize - len(ministreamData)
		buf.Write(make([]byte, pad))
	}

	// data sectors
	for i, e := range entries {
		if e.isStorage || i == rootIdx || e.mini || len(e.data) == 0 {
			continue
		}
		n := dataSectorCounts[i]
		if n == 0 {
			continue
		}
		buf.Write(e.data)
		pad := n*sectorSize - len(e.data)
		buf.Write(make([]byte, pad))
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// chainRun marks n consecutive sectors starting at start as a chain
// terminating in ENDOFCHAIN. A no-op when n == 0.
func chainRun(fat []uint32, start uint32, n int) {
	for i := 0; i < n; i++ {
		if i == n-1 {
			fat[start+uint32(i)] = secEndOfChain
		} else {
			fat[start+uint32(i)] = start + uint32(i) + 1
		}
	}
}

// packMiniStreams assigns every non-empty stream shorter than
// miniStreamCutoff a chain of 64-byte mini-sectors within a shared
// ministream buffer, filling in each entry's startSector (as a mini-
// sector index) and streamSize, and returns the resulting MiniFAT table
// alongside the packed buffer.
func packMiniStreams(entries []*buildEntry, rootIdx int) (miniFAT []uint32, ministreamData []byte) {
	buf := &bytes.Buffer{}
	for i, e := range entries {
		if e.isStorage || i == rootIdx || len(e.data) == 0 || len(e.data) >= miniStreamCutoff {
			continue
		}
		start := len(miniFAT)
		n := sectorsFor(len(e.data), miniSectorSize)
		for j := 0; j < n; j++ {
			if j == n-1 {
				miniFAT = append(miniFAT, secEndOfChain)
			} else {
				miniFAT = append(miniFAT, uint32(start+j+1))
			}
		}
		buf.Write(e.data)
		if pad := n*miniSectorSize - len(e.data); pad > 0 {
			buf.Write(make([]byte, pad))
		}
		e.startSector = uint32(start)
		e.streamSize = uint64(len(e.data))
		e.mini = true
	}
	return miniFAT, buf.Bytes()
}

func writeUint32Sector(buf *bytes.Buffer, vals []uint32) {
	for _, v := range vals {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf.Write(tmp[:])
	}
}

func sectorsFor(n, sz int) int {
	if n == 0 {
		return 0
	}
	return (n + sz - 1) / sz
}

// computeFATLayout resolves the classic FAT-describes-itself fixed point:
// the FAT must have an entry for every sector in the file, including the
// FAT (and DIFAT) sectors themselves.
func computeFATLayout(nonFATSectors int) (numFAT, numDIFAT int) {
	numFAT = 1
	numDIFAT = 0
	for {
		total := nonFATSectors + numFAT + numDIFAT
		needFAT := (total + fatPerSector - 1) / fatPerSector
		needDIFAT := 0
		if needFAT > 109 {
			needDIFAT = (needFAT - 109 + (fatPerSector - 2)) / (fatPerSector - 1)
		}
		if needFAT == numFAT && needDIFAT == numDIFAT {
			return numFAT, numDIFAT
		}
		numFAT, numDIFAT = needFAT, needDIFAT
	}
}

func flattenTree(entries []*buildEntry, parentIdx int, nodes []*Node) []*buildEntry {
	for _, n := range nodes {
		be := &buildEntry{name: n.Name, isStorage: n.Children != nil, data: n.Data, left: secFree, right: secFree, child: secFree}
		idx := len(entries)
		entries = append(entries, be)
		entries[parentIdx].children = append(entries[parentIdx].children, idx)
		if n.Children != nil {
			entries = flattenTree(entries, idx, n.Children)
		}
	}
	return entries
}

// linkSiblings builds a balanced binary search tree (by cfbNameLess) of
// each storage's children and records left/right/child pointers.
func linkSiblings(entries []*buildEntry) {
	for _, e := range entries {
		if len(e.children) == 0 {
			e.child = secFree
			continue
		}
		ordered := append([]int(nil), e.children...)
		sort.Slice(ordered, func(i, j int) bool {
			return cfbNameLess(entries[ordered[i]].name, entries[ordered[j]].name)
		})
		e.child = uint32(buildBalanced(entries, ordered))
	}
}

func buildBalanced(entries []*buildEntry, ordered []int) int {
	if len(ordered) == 0 {
		return int(secFree)
	}
	mid := len(ordered) / 2
	root := ordered[mid]
	l := buildBalanced(entries, ordered[:mid])
	r := buildBalanced(entries, ordered[mid+1:])
	entries[root].left = uint32(l)
	entries[root].right = uint32(r)
	return root
}

func writeDirEntry(w io.Writer, e *buildEntry) {
	var nameArr [32]uint16
	r16 := utf16.Encode([]rune(e.name))
	copy(nameArr[:], r16)
	nameArr[len(r16)] = 0
	nameByteLen := uint16((len(r16) + 1) * 2)
	if e.name == "" {
		nameByteLen = 0
	}

	ot := typeStream
	if e.isStorage {
		ot = typeStorage
	}
	if e.name == "Root Entry" {
		ot = typeRootStorage
	}

	de := &directoryEntry{
		Name:                   nameArr,
		NameByteLen:            nameByteLen,
		ObjectType:             ot,
		ColorFlag:              1, // black; every entry is marked black, with no red-black recoloring of the balanced tree
		LeftSiblingID:          e.left,
		RightSiblingID:         e.right,
		ChildID:                e.child,
		StartingSectorLocation: e.startSector,
		StreamSize:             e.streamSize,
	}
	if !e.isStorage && e.streamSize == 0 {
		de.StartingSectorLocation = 0
	}
	binary.Write(w, binary.LittleEndian, de)
}
