// Package pak reads Unreal Engine .pak archives: version negotiation,
// index parsing, and per-entry decryption and decompression.
package pak

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"io"
	"os"
)

// Reader provides access to the entries of one pak archive. The entry map
// is immutable after Open; extractions of distinct entries may run
// concurrently because all reads go through io.ReaderAt.
type Reader struct {
	src     io.ReaderAt
	size    int64
	closer  io.Closer // non-nil when the reader owns the handle
	version Version
	mount   string
	methods []Method
	key     cipher.Block
	oodle   OodleDecompressor
	entries map[string]*entry
}

type options struct {
	version Version // 0 = probe
	key     []byte
	oodle   OodleDecompressor
}

// Option configures Open.
type Option func(*options)

// WithVersion pins the format revision instead of probing. The on-disk
// ordinal must then match exactly.
func WithVersion(v Version) Option {
	return func(o *options) { o.version = v }
}

// WithKey supplies the raw 32-byte AES key for encrypted archives.
func WithKey(key []byte) Option {
	return func(o *options) { o.key = key }
}

// WithOodle supplies a decompressor for Oodle-compressed entries.
func WithOodle(fn OodleDecompressor) Option {
	return func(o *options) { o.oodle = fn }
}

// Open reads the trailer and index of the archive in src. When no version
// is pinned, revisions are probed from newest to oldest until one parses.
func Open(src io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var key cipher.Block
	if o.key != nil {
		var err error
		if key, err = newKeyCipher(o.key); err != nil {
			return nil, err
		}
	}

	if o.version != 0 {
		return openAt(src, size, o.version, true, key, o.oodle)
	}
	for v := VersionFnv64BugFix; v >= VersionInitial; v-- {
		r, err := openAt(src, size, v, false, key, o.oodle)
		if err == nil {
			return r, nil
		}
		if wrongGuess(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrParse
}

// OpenFile opens the archive at path. The returned reader owns the handle;
// callers parallelizing extraction of a file-backed reader can rely on
// os.File's positionless ReadAt.
func OpenFile(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := Open(f, fi.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

func openAt(src io.ReaderAt, size int64, v Version, strict bool, key cipher.Block, oodle OodleDecompressor) (*Reader, error) {
	f, err := readFooter(src, size, v, strict)
	if err != nil {
		return nil, err
	}
	if f.encrypted && key == nil {
		return nil, ErrEncrypted
	}
	idx, err := readIndex(src, size, f, key)
	if err != nil {
		return nil, err
	}
	return &Reader{
		src:     src,
		size:    size,
		version: f.version,
		mount:   idx.mountPoint,
		methods: f.methods,
		key:     key,
		oodle:   oodle,
		entries: idx.entries,
	}, nil
}

// wrongGuess reports whether an error from one probe attempt means "try
// the next version" rather than a real failure. Structural mismatches and
// truncated reads are expected while probing; cryptographic, capability,
// and semantic I/O errors are not.
func wrongGuess(err error) bool {
	var magicErr *MagicError
	var versionErr *VersionError
	var boolErr *BoolError
	switch {
	case errors.As(err, &magicErr),
		errors.As(err, &versionErr),
		errors.As(err, &boolErr),
		errors.Is(err, ErrUTF8),
		errors.Is(err, ErrUTF16),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}

// Close releases the archive handle when the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Version returns the negotiated format revision.
func (r *Reader) Version() Version { return r.version }

// MountPoint returns the archive's mount point string, passed through
// without interpretation.
func (r *Reader) MountPoint() string { return r.mount }

// Entries returns the paths of all archived files, in no particular order.
func (r *Reader) Entries() []string {
	paths := make([]string, 0, len(r.entries))
	for path := range r.entries {
		paths = append(paths, path)
	}
	return paths
}

// EntryInfo describes one archived file.
type EntryInfo struct {
	Offset           uint64
	CompressedSize   uint64
	UncompressedSize uint64
	Method           Method
	Encrypted        bool
	Blocks           int
}

// Stat returns the descriptor of the entry at path.
func (r *Reader) Stat(path string) (EntryInfo, error) {
	e, ok := r.entries[path]
	if !ok {
		return EntryInfo{}, &MissingError{Path: path}
	}
	m := MethodNone
	if e.method >= 0 && e.method < len(r.methods) {
		m = r.methods[e.method]
	}
	return EntryInfo{
		Offset:           e.offset,
		CompressedSize:   e.compressed,
		UncompressedSize: e.uncompressed,
		Method:           m,
		Encrypted:        e.encrypted,
		Blocks:           len(e.blocks),
	}, nil
}

// Read extracts the entry at path and writes its decoded body to w. A
// failed extraction leaves the reader usable for other entries.
func (r *Reader) Read(path string, w io.Writer) error {
	e, ok := r.entries[path]
	if !ok {
		return &MissingError{Path: path}
	}
	return e.extract(r.src, r.size, r.version, r.methods, r.key, r.oodle, w)
}

// Get extracts the entry at path into memory.
func (r *Reader) Get(path string) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Read(path, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
