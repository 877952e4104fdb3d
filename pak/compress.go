package pak

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Method is a compression method label from the archive's method table.
type Method int

const (
	MethodNone Method = iota
	MethodZlib
	MethodGzip
	MethodOodle
)

var methodNames = [...]string{"None", "Zlib", "Gzip", "Oodle"}

func (m Method) String() string {
	if m >= MethodNone && m <= MethodOodle {
		return methodNames[m]
	}
	return fmt.Sprintf("Unknown(%d)", int(m))
}

// methodByName matches a trailer compression name case-insensitively.
// Unknown names map to MethodNone, the identity slot.
func methodByName(name string) Method {
	for m, n := range methodNames {
		if strings.EqualFold(name, n) {
			return Method(m)
		}
	}
	return MethodNone
}

// implicitMethods is the method table of archives predating
// VersionFNameBasedCompression, which store no names in the trailer.
var implicitMethods = []Method{MethodZlib, MethodGzip, MethodOodle}

// OodleDecompressor decompresses a single Oodle block into exactly rawSize
// bytes. The reader has no built-in Oodle backend; callers with access to
// one inject it with WithOodle.
type OodleDecompressor func(src []byte, rawSize int) ([]byte, error)

// decompress writes the decompressed form of src to w. rawSize is the
// expected output size, used only by Oodle.
func decompress(w io.Writer, src []byte, m Method, rawSize int64, oodle OodleDecompressor) error {
	switch m {
	case MethodNone:
		_, err := w.Write(src)
		return err
	case MethodZlib:
		zr, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return fmt.Errorf("pak: zlib: %w", err)
		}
		defer zr.Close()
		_, err = io.Copy(w, zr)
		return err
	case MethodGzip:
		gr, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return fmt.Errorf("pak: gzip: %w", err)
		}
		defer gr.Close()
		_, err = io.Copy(w, gr)
		return err
	case MethodOodle:
		if oodle == nil {
			return ErrOodle
		}
		out, err := oodle(src, int(rawSize))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOodleDecompress, err)
		}
		_, err = w.Write(out)
		return err
	}
	return ErrCompression
}
