package pak

import (
	"crypto/cipher"
	"fmt"
	"io"
)

// encodedHeaderSize is the on-disk record header size for every version
// that uses encoded records.
const encodedHeaderSize = 53

// block is a byte range of an entry's body holding one independently
// compressed chunk. Bounds are absolute within the archive before
// VersionRelativeChunkOffsets and relative to the record start from it on.
type block struct {
	start, end uint64
}

// entry describes one archived file: where its record lives and how to
// decode the body. Entries are built during index parsing and never
// mutated.
type entry struct {
	offset       uint64
	compressed   uint64
	uncompressed uint64
	method       int // index into the archive method table, -1 for none
	blocks       []block
	encrypted    bool
	blockRaw     uint64 // uncompressed size of each block but the last
}

// readEntryFull decodes the self-describing record form used by the legacy
// index and by the on-disk record header in front of every entry body.
func readEntryFull(s *stream, v Version) (*entry, error) {
	offset, err := s.u64()
	if err != nil {
		return nil, err
	}
	compressed, err := s.u64()
	if err != nil {
		return nil, err
	}
	uncompressed, err := s.u64()
	if err != nil {
		return nil, err
	}
	var rawMethod uint32
	if v == VersionFNameBasedCompression {
		b, err := s.u8()
		if err != nil {
			return nil, err
		}
		rawMethod = uint32(b)
	} else {
		if rawMethod, err = s.u32(); err != nil {
			return nil, err
		}
	}
	method := int(rawMethod) - 1
	if v == VersionInitial {
		if err := s.skip(8); err != nil { // timestamp
			return nil, err
		}
	}
	if err := s.skip(20); err != nil { // record hash, never verified
		return nil, err
	}
	e := &entry{
		offset:       offset,
		compressed:   compressed,
		uncompressed: uncompressed,
		method:       method,
		blockRaw:     uncompressed,
	}
	if v >= VersionCompressionEncryption {
		if method >= 0 {
			n, err := s.count()
			if err != nil {
				return nil, err
			}
			if n > 0 {
				e.blocks = make([]block, n)
			}
			for i := range e.blocks {
				if e.blocks[i].start, err = s.u64(); err != nil {
					return nil, err
				}
				if e.blocks[i].end, err = s.u64(); err != nil {
					return nil, err
				}
			}
		}
		if e.encrypted, err = s.boolean(); err != nil {
			return nil, err
		}
		raw, err := s.u32()
		if err != nil {
			return nil, err
		}
		e.blockRaw = uint64(raw)
	}
	return e, nil
}

// readEntryEncoded decodes the bit-packed record form referenced by the
// path-hash index. The layout of the leading bitfield:
//
//	bit  31     offset is u32 (else u64)
//	bit  30     uncompressed size is u32 (else u64)
//	bit  29     compressed size is u32 (else u64)
//	bits 28..23 compression method, 0 = none, else table index + 1
//	bit  22     encrypted
//	bits 21..6  block count
//	bits 5..0   block uncompressed size >> 11, 0x3F = explicit u32 follows
func readEntryEncoded(s *stream) (*entry, error) {
	bits, err := s.u32()
	if err != nil {
		return nil, err
	}
	method := int((bits>>23)&0x3F) - 1
	encrypted := bits&(1<<22) != 0

	blockRaw := uint64(bits&0x3F) << 11
	if bits&0x3F == 0x3F {
		raw, err := s.u32()
		if err != nil {
			return nil, err
		}
		blockRaw = uint64(raw)
	}

	// Size fields shrink to u32 when the matching bit is set.
	sized := func(bit uint) (uint64, error) {
		if bits&(1<<bit) != 0 {
			v, err := s.u32()
			return uint64(v), err
		}
		return s.u64()
	}
	offset, err := sized(31)
	if err != nil {
		return nil, err
	}
	uncompressed, err := sized(30)
	if err != nil {
		return nil, err
	}
	compressed := uncompressed
	if method >= 0 {
		if compressed, err = sized(29); err != nil {
			return nil, err
		}
	}

	e := &entry{
		offset:       offset,
		compressed:   compressed,
		uncompressed: uncompressed,
		method:       method,
		encrypted:    encrypted,
		blockRaw:     blockRaw,
	}

	blockCount := (bits >> 6) & 0xFFFF
	start := uint64(encodedHeaderSize)
	if method >= 0 {
		start += 4 + 16*uint64(blockCount)
	}
	switch {
	case blockCount == 0:
	case blockCount == 1 && !encrypted:
		e.blocks = []block{{start: start, end: start + compressed}}
	default:
		e.blocks = make([]block, blockCount)
		for i := range e.blocks {
			size, err := s.u32()
			if err != nil {
				return nil, err
			}
			e.blocks[i] = block{start: start, end: start + uint64(size)}
			if encrypted {
				start += uint64(size+15) &^ 15
			} else {
				start += uint64(size)
			}
		}
	}
	return e, nil
}

// extract streams the entry body to w: seek to the record, walk its header
// to find the body, read the (padded) ciphertext window, decrypt, then
// decompress block by block in order.
func (e *entry) extract(src io.ReaderAt, size int64, v Version, methods []Method, key cipher.Block, oodle OodleDecompressor, w io.Writer) error {
	if e.offset > uint64(size) {
		return io.ErrUnexpectedEOF
	}
	sr := io.NewSectionReader(src, int64(e.offset), size-int64(e.offset))
	s := newStream(sr)

	// The index descriptor does not pin the record's variable-length tail,
	// so the on-disk header is re-parsed to locate the body exactly.
	if _, err := readEntryFull(s, v); err != nil {
		return fmt.Errorf("pak: record header at %d: %w", e.offset, err)
	}
	dataOffset := e.offset + uint64(s.pos())

	readLen := e.compressed
	if e.encrypted {
		readLen = (e.compressed + 15) &^ 15
	}
	if readLen > uint64(size)-dataOffset {
		return io.ErrUnexpectedEOF
	}
	data := make([]byte, readLen)
	if err := s.read(data); err != nil {
		return err
	}
	if e.encrypted {
		if err := decrypt(key, data); err != nil {
			return err
		}
		data = data[:e.compressed]
	}

	ranges, err := e.blockRanges(dataOffset, v, uint64(len(data)))
	if err != nil {
		return err
	}

	m := MethodNone
	if e.method >= 0 {
		if e.method >= len(methods) {
			return ErrCompression
		}
		m = methods[e.method]
	}
	for i, r := range ranges {
		rawSize := int64(e.uncompressed)
		if len(ranges) > 1 {
			rawSize = int64(min(e.blockRaw, e.uncompressed-uint64(i)*e.blockRaw))
		}
		if err := decompress(w, data[r[0]:r[1]], m, rawSize, oodle); err != nil {
			return err
		}
	}
	return nil
}

// blockRanges projects the entry's blocks into offsets within the body
// buffer. Block bounds are relative to the record start from
// VersionRelativeChunkOffsets on, absolute within the archive before that.
func (e *entry) blockRanges(dataOffset uint64, v Version, bufLen uint64) ([][2]uint64, error) {
	if e.blocks == nil {
		return [][2]uint64{{0, bufLen}}, nil
	}
	adj := dataOffset
	if v >= VersionRelativeChunkOffsets {
		adj = dataOffset - e.offset
	}
	ranges := make([][2]uint64, len(e.blocks))
	for i, b := range e.blocks {
		if b.start < adj || b.end < b.start || b.end-adj > bufLen {
			return nil, fmt.Errorf("pak: block %d of entry at %d out of range", i, e.offset)
		}
		ranges[i] = [2]uint64{b.start - adj, b.end - adj}
	}
	return ranges, nil
}
