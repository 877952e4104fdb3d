package pak

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// The tests build archives in memory. The builder mirrors what the engine
// writes: records first, then (for the path-hash layout) the directory
// index, then the outer index, then the trailer.

// testingT is the subset of testing.T the builder needs, also satisfied by
// rapid.T in the property tests.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

type testEntry struct {
	path      string
	data      []byte
	method    Method
	encrypted bool
	blockSize int // split uncompressed data into blocks of this size; 0 = single block

	// forceRawMethod stamps the record's raw method value while leaving the
	// body uncompressed, for exercising dispatch of methods the builder
	// cannot produce (Oodle, out-of-table indexes).
	forceRawMethod uint32
}

type testArchive struct {
	version      Version
	mount        string
	key          []byte // AES-256 key; encrypts the index and encrypted entries
	encryptIndex bool
	entries      []testEntry
	badMagic     uint32 // replaces the trailer magic when nonzero
}

// wire is a little-endian writer for archive fields.
type wire struct {
	bytes.Buffer
}

func (w *wire) u8(v byte)    { w.WriteByte(v) }
func (w *wire) u32(v uint32) { binary.Write(w, binary.LittleEndian, v) }
func (w *wire) u64(v uint64) { binary.Write(w, binary.LittleEndian, v) }

// str writes a length-prefixed UTF-8 string with its trailing NUL.
func (w *wire) str(s string) {
	w.u32(uint32(len(s) + 1))
	w.WriteString(s)
	w.u8(0)
}

func (w *wire) zeros(n int) { w.Write(make([]byte, n)) }

func pad16(b []byte) []byte {
	if len(b)%16 == 0 {
		return b
	}
	return append(b, make([]byte, 16-len(b)%16)...)
}

func encryptECB(t testingT, key, data []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes key: %v", err)
	}
	out := make([]byte, len(data))
	for i := 0; i+16 <= len(data); i += 16 {
		block.Encrypt(out[i:i+16], data[i:i+16])
	}
	return out
}

func compressChunk(t testingT, m Method, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch m {
	case MethodZlib:
		zw := zlib.NewWriter(&buf)
		zw.Write(data)
		zw.Close()
	case MethodGzip:
		gw := gzip.NewWriter(&buf)
		gw.Write(data)
		gw.Close()
	default:
		t.Fatalf("cannot compress with %s", m)
	}
	return buf.Bytes()
}

// builtEntry is one record laid out on disk plus the descriptor fields the
// index needs to reference it.
type builtEntry struct {
	path         string
	offset       uint64
	compressed   uint64
	uncompressed uint64
	rawMethod    uint32 // 0 = none, else table index + 1
	blockSizes   []uint32
	encrypted    bool
	blockRaw     uint32
	headerLen    uint64
	record       []byte // header + body
}

// buildRecord lays out one entry's on-disk record at the given offset.
func buildRecord(t testingT, a *testArchive, e testEntry, offset uint64) builtEntry {
	t.Helper()

	rawMethod := uint32(e.method) // implicit and written tables both use this order
	if e.forceRawMethod != 0 {
		rawMethod = e.forceRawMethod
	}

	// Split and compress the body.
	var body []byte
	var blockSizes []uint32
	switch {
	case e.method == MethodNone:
		body = e.data
	default:
		chunk := e.blockSize
		if chunk == 0 {
			chunk = len(e.data)
		}
		for off := 0; off < len(e.data) || off == 0; off += chunk {
			end := min(off+chunk, len(e.data))
			c := compressChunk(t, e.method, e.data[off:end])
			blockSizes = append(blockSizes, uint32(len(c)))
			if e.encrypted {
				c = pad16(c)
			}
			body = append(body, c...)
			if end == len(e.data) {
				break
			}
		}
	}

	compressed := uint64(len(e.data))
	if e.method != MethodNone {
		compressed = 0
		for _, s := range blockSizes {
			compressed += uint64(s)
		}
	}
	if e.encrypted {
		if e.method == MethodNone {
			body = pad16(append([]byte(nil), e.data...))
		}
		body = encryptECB(t, a.key, pad16(body))
	}

	blockRaw := uint32(e.blockSize)
	if blockRaw == 0 {
		blockRaw = uint32(len(e.data))
	}

	be := builtEntry{
		path:         e.path,
		offset:       offset,
		compressed:   compressed,
		uncompressed: uint64(len(e.data)),
		rawMethod:    rawMethod,
		blockSizes:   blockSizes,
		encrypted:    e.encrypted,
		blockRaw:     blockRaw,
	}

	var w wire
	writeFullRecord(&w, a.version, be, 0)
	be.headerLen = uint64(w.Len())
	w.Reset()
	writeFullRecord(&w, a.version, be, be.headerLen)
	w.Write(body)
	be.record = append([]byte(nil), w.Bytes()...)
	return be
}

// writeFullRecord writes the self-describing record form. When used as the
// on-disk header the block bounds need the header length, so the caller
// invokes it twice: once to measure, once to write.
func writeFullRecord(w *wire, v Version, be builtEntry, headerLen uint64) {
	w.u64(be.offset)
	w.u64(be.compressed)
	w.u64(be.uncompressed)
	if v == VersionFNameBasedCompression {
		w.u8(byte(be.rawMethod))
	} else {
		w.u32(be.rawMethod)
	}
	if v == VersionInitial {
		w.u64(0) // timestamp
	}
	w.zeros(20) // hash
	if v >= VersionCompressionEncryption {
		if be.rawMethod != 0 {
			w.u32(uint32(len(be.blockSizes)))
			cursor := headerLen
			if v < VersionRelativeChunkOffsets {
				cursor += be.offset
			}
			for _, size := range be.blockSizes {
				w.u64(cursor)
				w.u64(cursor + uint64(size))
				if be.encrypted {
					cursor += uint64(size+15) &^ 15
				} else {
					cursor += uint64(size)
				}
			}
		}
		if be.encrypted {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.u32(be.blockRaw)
	}
}

// writeEncodedRecord writes the bit-packed record form used by the
// path-hash index. All size fields use their u32 form.
func writeEncodedRecord(w *wire, be builtEntry) {
	bits := uint32(1<<31 | 1<<30 | 1<<29)
	bits |= (be.rawMethod & 0x3F) << 23
	if be.encrypted {
		bits |= 1 << 22
	}
	bits |= uint32(len(be.blockSizes)) << 6
	bits |= 0x3F // explicit block uncompressed size follows
	w.u32(bits)
	w.u32(be.blockRaw)
	w.u32(uint32(be.offset))
	w.u32(uint32(be.uncompressed))
	if be.rawMethod != 0 {
		w.u32(uint32(be.compressed))
	}
	if len(be.blockSizes) == 1 && !be.encrypted {
		return // single unencrypted block is implied
	}
	for _, size := range be.blockSizes {
		w.u32(size)
	}
}

// build serializes the archive.
func (a *testArchive) build(t testingT) []byte {
	t.Helper()

	var file wire
	var built []builtEntry
	for _, e := range a.entries {
		be := buildRecord(t, a, e, uint64(file.Len()))
		built = append(built, be)
		file.Write(be.record)
	}

	encryptRegion := func(raw []byte) []byte {
		if !a.encryptIndex {
			return raw
		}
		return encryptECB(t, a.key, pad16(raw))
	}

	var idx wire
	idx.str(a.mount)
	if a.version >= VersionPathHashIndex {
		// Directory index blob, stored between the records and the index.
		var dir wire
		writeDirectoryIndex(&dir, built)
		dirBlob := encryptRegion(dir.Bytes())
		dirOffset := uint64(file.Len())
		file.Write(dirBlob)

		// Encoded records in entry order; writeDirectoryIndex assigned the
		// matching blob offsets.
		var blob wire
		for _, be := range built {
			writeEncodedRecord(&blob, be)
		}

		idx.u32(uint32(len(built))) // entry count
		idx.u64(0)                  // path hash seed
		idx.u32(0)                  // no path-hash sub-index
		idx.u32(1)                  // full directory index present
		idx.u64(dirOffset)
		idx.u64(uint64(len(dirBlob)))
		idx.zeros(20) // directory index hash
		idx.u32(uint32(blob.Len()))
		idx.Write(blob.Bytes())
		idx.u32(0) // no trailing flat pairs
	} else {
		idx.u32(uint32(len(built)))
		for _, be := range built {
			idx.str(be.path)
			writeFullRecord(&idx, a.version, be, be.headerLen)
		}
	}

	indexBlob := encryptRegion(idx.Bytes())
	indexOffset := uint64(file.Len())
	file.Write(indexBlob)

	writeTrailer(&file, a, indexOffset, uint64(len(indexBlob)))
	return file.Bytes()
}

// writeDirectoryIndex groups entries by directory and writes the
// full-directory blob. Record blob offsets are assigned in entry order,
// matching the encoded blob layout in build.
func writeDirectoryIndex(w *wire, built []builtEntry) {
	type dirFileRef struct {
		name   string
		offset uint32
	}
	dirs := make(map[string][]dirFileRef)
	var order []string

	offset := uint32(0)
	for _, be := range built {
		dir, name := "", be.path
		if i := strings.LastIndexByte(be.path, '/'); i >= 0 {
			dir, name = be.path[:i+1], be.path[i+1:]
		}
		if _, ok := dirs[dir]; !ok {
			order = append(order, dir)
		}
		dirs[dir] = append(dirs[dir], dirFileRef{name: name, offset: offset})
		offset += encodedRecordLen(be)
	}
	sort.Strings(order)

	w.u32(uint32(len(order)))
	for _, dir := range order {
		w.str(dir)
		w.u32(uint32(len(dirs[dir])))
		for _, f := range dirs[dir] {
			w.str(f.name)
			w.u32(f.offset)
		}
	}
}

func encodedRecordLen(be builtEntry) uint32 {
	n := uint32(4 + 4 + 4 + 4) // bitfield + explicit block size + offset + uncompressed
	if be.rawMethod != 0 {
		n += 4
	}
	if !(len(be.blockSizes) == 1 && !be.encrypted) {
		n += 4 * uint32(len(be.blockSizes))
	}
	return n
}

func writeTrailer(w *wire, a *testArchive, indexOffset, indexSize uint64) {
	if a.version >= VersionEncryptionKeyUuid {
		w.zeros(16)
	}
	if a.version >= VersionIndexEncryption {
		if a.encryptIndex {
			w.u8(1)
		} else {
			w.u8(0)
		}
	}
	if a.badMagic != 0 {
		w.u32(a.badMagic)
	} else {
		w.u32(magic)
	}
	w.u32(a.version.Ordinal())
	w.u64(indexOffset)
	w.u64(indexSize)
	w.zeros(20) // index hash
	if a.version == VersionFrozenIndex {
		w.u8(0)
	}
	if a.version >= VersionFNameBasedCompression {
		names := []string{"Zlib", "Gzip", "Oodle", ""}
		if a.version >= VersionFNameBasedCompression2 {
			names = append(names, "")
		}
		var slot [32]byte
		for _, name := range names {
			clear(slot[:])
			copy(slot[:], name)
			w.Write(slot[:])
		}
	}
}
