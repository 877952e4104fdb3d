package pak

import (
	"bytes"
	"crypto/cipher"
	"fmt"
	"io"
)

// index is the parsed archive catalog: the mount point and one descriptor
// per contained path.
type index struct {
	mountPoint string
	entries    map[string]*entry
}

// readIndex loads, decrypts, and parses the archive index described by the
// footer. For VersionPathHashIndex and later this walks the full-directory
// sub-index and the encoded-record blob; earlier versions store a flat list
// of (path, record) pairs. Both layouts may carry trailing flat pairs,
// which overwrite on conflict.
func readIndex(src io.ReaderAt, size int64, f *footer, key cipher.Block) (*index, error) {
	raw, err := readRegion(src, size, f.indexOffset, f.indexSize, f.encrypted, key)
	if err != nil {
		return nil, err
	}
	s := newStream(bytes.NewReader(raw))

	mountPoint, err := s.str()
	if err != nil {
		return nil, err
	}
	entries := make(map[string]*entry)

	if f.version >= VersionPathHashIndex {
		if _, err := s.u32(); err != nil { // entry count, informational
			return nil, err
		}
		if err := s.skip(8); err != nil { // path hash seed
			return nil, err
		}
		hasPathHash, err := s.u32()
		if err != nil {
			return nil, err
		}
		if hasPathHash != 0 {
			// Path-hash sub-index location and hash; the sub-index itself
			// is unused because lookups go through the full directory.
			if err := s.skip(8 + 8 + 20); err != nil {
				return nil, err
			}
		}
		var files []dirFile
		hasDir, err := s.u32()
		if err != nil {
			return nil, err
		}
		if hasDir != 0 {
			dirOffset, err := s.u64()
			if err != nil {
				return nil, err
			}
			dirSize, err := s.u64()
			if err != nil {
				return nil, err
			}
			if err := s.skip(20); err != nil { // directory index hash
				return nil, err
			}
			dir, err := readRegion(src, size, dirOffset, dirSize, f.encrypted, key)
			if err != nil {
				return nil, err
			}
			if files, err = readDirectoryIndex(dir); err != nil {
				return nil, err
			}
		}
		blobSize, err := s.count()
		if err != nil {
			return nil, err
		}
		blob := make([]byte, blobSize)
		if err := s.read(blob); err != nil {
			return nil, err
		}
		for _, file := range files {
			if int64(file.offset) >= int64(len(blob)) {
				return nil, io.ErrUnexpectedEOF
			}
			e, err := readEntryEncoded(newStream(bytes.NewReader(blob[file.offset:])))
			if err != nil {
				return nil, fmt.Errorf("pak: encoded record for %q: %w", file.path, err)
			}
			entries[file.path] = e
		}
	}

	// Flat (path, record) pairs: the whole index before
	// VersionPathHashIndex, a usually empty remainder after it.
	n, err := s.count()
	if err != nil {
		return nil, err
	}
	for range n {
		path, err := s.str()
		if err != nil {
			return nil, err
		}
		e, err := readEntryFull(s, f.version)
		if err != nil {
			return nil, fmt.Errorf("pak: record for %q: %w", path, err)
		}
		entries[path] = e
	}

	return &index{mountPoint: mountPoint, entries: entries}, nil
}

// dirFile is one full-directory index leaf: a reassembled path and the
// offset of its encoded record in the record blob.
type dirFile struct {
	path   string
	offset uint32
}

// readDirectoryIndex parses the full-directory blob: a directory count,
// then per directory a name and its files. Paths are the directory name and
// file name concatenated as-is.
func readDirectoryIndex(raw []byte) ([]dirFile, error) {
	s := newStream(bytes.NewReader(raw))
	dirCount, err := s.count()
	if err != nil {
		return nil, err
	}
	var files []dirFile
	for range dirCount {
		dirName, err := s.str()
		if err != nil {
			return nil, err
		}
		fileCount, err := s.count()
		if err != nil {
			return nil, err
		}
		for range fileCount {
			fileName, err := s.str()
			if err != nil {
				return nil, err
			}
			recOffset, err := s.u32()
			if err != nil {
				return nil, err
			}
			files = append(files, dirFile{path: dirName + fileName, offset: recOffset})
		}
	}
	return files, nil
}

// readRegion reads size bytes at offset from the archive and decrypts them
// in place when the index is encrypted.
func readRegion(src io.ReaderAt, fileSize int64, offset, size uint64, encrypted bool, key cipher.Block) ([]byte, error) {
	if size > maxAlloc || offset > uint64(fileSize) || size > uint64(fileSize)-offset {
		return nil, io.ErrUnexpectedEOF
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(src, int64(offset), int64(size)), raw); err != nil {
		return nil, err
	}
	if encrypted {
		if err := decrypt(key, raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}
