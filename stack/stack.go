// Package stack overlays several pak archives the way a game mounts them:
// archives are ordered, and the last archive containing a path wins. This
// is how patch archives shadow the files they replace.
package stack

import (
	"context"
	"io"

	"github.com/openpak/openpak/pak"
	"github.com/openpak/openpak/storage"
)

// Stack is an ordered overlay of pak readers. Resolution is computed once
// at construction; like the readers themselves, a Stack is immutable and
// safe for concurrent extraction.
type Stack struct {
	readers  []*pak.Reader
	resolved map[string]*pak.Reader
	closers  []func()
}

// New builds an overlay over the given readers, in mount order. Later
// readers shadow earlier ones for paths they share.
func New(readers ...*pak.Reader) *Stack {
	resolved := make(map[string]*pak.Reader)
	for _, r := range readers {
		for _, path := range r.Entries() {
			resolved[path] = r
		}
	}
	return &Stack{readers: readers, resolved: resolved}
}

// Options configures OpenDir.
type Options struct {
	// Key is the raw 32-byte AES key shared by encrypted archives.
	Key []byte
	// Oodle decompresses Oodle-encoded entries, see pak.WithOodle.
	Oodle pak.OodleDecompressor
}

// OpenDir opens every *.pak archive under dir (local or gs://) in lexical
// order, which places patch archives after the bases they modify.
func OpenDir(ctx context.Context, dir string, opts Options) (*Stack, error) {
	names, err := storage.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	var pakOpts []pak.Option
	if opts.Key != nil {
		pakOpts = append(pakOpts, pak.WithKey(opts.Key))
	}
	if opts.Oodle != nil {
		pakOpts = append(pakOpts, pak.WithOodle(opts.Oodle))
	}

	readers := make([]*pak.Reader, 0, len(names))
	closers := make([]func(), 0, len(names))
	fail := func(err error) (*Stack, error) {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	for _, name := range names {
		src, err := storage.Open(ctx, storage.JoinPath(dir, name))
		if err != nil {
			return fail(err)
		}
		r, err := pak.Open(src, src.Size, pakOpts...)
		if err != nil {
			src.Close()
			return fail(err)
		}
		readers = append(readers, r)
		closers = append(closers, src.Close)
	}

	s := New(readers...)
	s.closers = closers
	return s, nil
}

// Archives returns the underlying readers in mount order.
func (s *Stack) Archives() []*pak.Reader { return s.readers }

// Entries returns the merged set of paths, in no particular order.
func (s *Stack) Entries() []string {
	paths := make([]string, 0, len(s.resolved))
	for path := range s.resolved {
		paths = append(paths, path)
	}
	return paths
}

// Resolve returns the reader that wins for path.
func (s *Stack) Resolve(path string) (*pak.Reader, bool) {
	r, ok := s.resolved[path]
	return r, ok
}

// Read extracts path from its winning archive into w.
func (s *Stack) Read(path string, w io.Writer) error {
	r, ok := s.resolved[path]
	if !ok {
		return &pak.MissingError{Path: path}
	}
	return r.Read(path, w)
}

// Get extracts path from its winning archive into memory.
func (s *Stack) Get(path string) ([]byte, error) {
	r, ok := s.resolved[path]
	if !ok {
		return nil, &pak.MissingError{Path: path}
	}
	return r.Get(path)
}

// Close releases every handle opened by OpenDir.
func (s *Stack) Close() error {
	var err error
	for _, r := range s.readers {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	for _, c := range s.closers {
		c()
	}
	return err
}
