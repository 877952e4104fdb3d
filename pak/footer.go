package pak

import (
	"bytes"
	"io"
)

// footer holds the parsed trailer fields needed to locate and decode the
// index.
type footer struct {
	version     Version // effective version after ordinal negotiation
	encrypted   bool    // index is AES encrypted
	indexOffset uint64
	indexSize   uint64
	methods     []Method
}

// readFooter parses the trailer at end-of-file for a candidate version.
//
// In strict mode the on-disk ordinal must match the candidate exactly. In
// lenient mode (used by the version prober) a differing ordinal is adopted
// when it names a version with the same trailer layout, so probing a
// neighbouring revision still converges on the archive's real version.
func readFooter(src io.ReaderAt, size int64, v Version, strict bool) (*footer, error) {
	fs := v.footerSize()
	if size < fs {
		return nil, io.ErrUnexpectedEOF
	}
	s := newStream(io.NewSectionReader(src, size-fs, fs))

	if v >= VersionEncryptionKeyUuid {
		if _, err := s.guid(); err != nil { // encryption key uuid
			return nil, err
		}
	}
	encrypted := false
	if v >= VersionIndexEncryption {
		var err error
		if encrypted, err = s.boolean(); err != nil {
			return nil, err
		}
	}
	m, err := s.u32()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, &MagicError{Got: m}
	}
	ordinal, err := s.u32()
	if err != nil {
		return nil, err
	}
	effective := v
	if ordinal != v.Ordinal() {
		onDisk, ok := versionFromOrdinal(ordinal)
		if strict || !ok || onDisk.footerSize() != fs {
			return nil, &VersionError{Got: ordinal}
		}
		effective = onDisk
	}
	indexOffset, err := s.u64()
	if err != nil {
		return nil, err
	}
	indexSize, err := s.u64()
	if err != nil {
		return nil, err
	}
	if err := s.skip(20); err != nil { // index hash, never verified
		return nil, err
	}
	if effective == VersionFrozenIndex {
		// The frozen-index payload itself is not supported; only the marker
		// byte is consumed.
		if _, err := s.u8(); err != nil {
			return nil, err
		}
	}
	methods := implicitMethods
	if effective >= VersionFNameBasedCompression {
		slots := 4
		if effective >= VersionFNameBasedCompression2 {
			slots = 5
		}
		if methods, err = readMethodNames(s, slots); err != nil {
			return nil, err
		}
	}

	return &footer{
		version:     effective,
		encrypted:   encrypted,
		indexOffset: indexOffset,
		indexSize:   indexSize,
		methods:     methods,
	}, nil
}

// readMethodNames reads the trailer's compression table: fixed 32-byte
// ASCII slots, null padded.
func readMethodNames(s *stream, slots int) ([]Method, error) {
	methods := make([]Method, slots)
	var slot [32]byte
	for i := range methods {
		if err := s.read(slot[:]); err != nil {
			return nil, err
		}
		name := string(bytes.TrimRight(slot[:], "\x00"))
		methods[i] = methodByName(name)
	}
	return methods, nil
}
