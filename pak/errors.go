package pak

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the reader. Wrapped errors are matched with
// errors.Is / errors.As.
var (
	// ErrAes indicates the supplied AES key is not 32 bytes.
	ErrAes = errors.New("pak: aes key is an incorrect length")
	// ErrEncrypted indicates the archive requires a key and none was supplied.
	ErrEncrypted = errors.New("pak: archive is encrypted but no key was provided")
	// ErrCompression indicates an entry references an unknown or unusable
	// compression method.
	ErrCompression = errors.New("pak: unsupported compression method")
	// ErrOodle indicates an entry is Oodle-compressed and no Oodle
	// decompressor was configured (see WithOodle).
	ErrOodle = errors.New("pak: no oodle decompressor configured")
	// ErrOodleDecompress indicates the configured Oodle decompressor failed.
	ErrOodleDecompress = errors.New("pak: oodle decompression failed")
	// ErrParse indicates no supported version could parse the archive.
	ErrParse = errors.New("pak: archive could not be parsed with any version")
	// ErrUTF8 indicates a string field held invalid UTF-8.
	ErrUTF8 = errors.New("pak: invalid utf-8 string")
	// ErrUTF16 indicates a string field held invalid UTF-16.
	ErrUTF16 = errors.New("pak: invalid utf-16 string")
)

// MagicError is returned when the trailer magic does not match. During
// version probing it means "wrong footer offset for this version".
type MagicError struct {
	Got uint32
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("pak: found magic %#x instead of %#x", e.Got, magic)
}

// VersionError is returned when the on-disk version ordinal disagrees with
// the requested version: always when the version is pinned, and during
// probing when the two versions' trailer layouts differ.
type VersionError struct {
	Got uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("pak: wrong version, archive reports v%d", e.Got)
}

// BoolError is returned when a flag byte is neither 0 nor 1, usually a sign
// of parsing with the wrong version.
type BoolError struct {
	Got byte
}

func (e *BoolError) Error() string {
	return fmt.Sprintf("pak: found %d instead of a boolean", e.Got)
}

// MissingError is returned when no entry exists at the requested path.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("pak: no entry found at %q", e.Path)
}
