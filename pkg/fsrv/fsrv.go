// Package fsrv is the file server the core assembler is built against: it
// never touches os.* directly, only this interface, so a mock can supply an
// in-memory overlay for tests and for the embedded `<std>/` namespace.
package fsrv

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"
)

// StdPrefix is the namespace reserved for the embedded resource table,
// keeping well-known builtin names from colliding with user-supplied ones.
const StdPrefix = "<std>/"

// Server is the interface the assembler core depends on. filename is a
// logical name, not necessarily a real OS path — real implementations
// translate it, mock implementations just use it as a map key.
type Server interface {
	GetBytes(filename string) ([]byte, error)
	GetChars(filename string) (string, error)
}

// ErrUpwardEscape is returned when a relative include path would escape the
// project root via `..` segments.
var ErrUpwardEscape = errors.New("fsrv: relative path escapes project root")

// Join resolves `relative` against the directory containing `from`,
// rejecting upward escapes past the root the FS implementation was rooted
// at. `<std>/`-prefixed paths are left untouched so they keep resolving
// against the embedded table regardless of the including file's location.
func Join(from, relative string) (string, error) {
	if strings.HasPrefix(relative, StdPrefix) {
		return relative, nil
	}
	dir := path.Dir(from)
	joined := path.Join(dir, relative)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return "", ErrUpwardEscape
	}
	return joined, nil
}

// OSServer implements Server over a real fs.FS rooted at some directory.
type OSServer struct {
	FS  fs.FS
	Std fs.FS // backing store for <std>/-prefixed names, may be nil
}

// NewOSServer returns a Server rooted at root (an fs.FS, typically
// os.DirFS(dir)), with std backing the `<std>/` namespace.
func NewOSServer(root fs.FS, std fs.FS) *OSServer {
	return &OSServer{FS: root, Std: std}
}

func (s *OSServer) GetBytes(filename string) ([]byte, error) {
	fsys, name := s.resolve(filename)
	if fsys == nil {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(fsys, name)
}

func (s *OSServer) GetChars(filename string) (string, error) {
	b, err := s.GetBytes(filename)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("fsrv: file is not valid UTF-8: " + filename)
	}
	return string(b), nil
}

func (s *OSServer) resolve(filename string) (fs.FS, string) {
	if strings.HasPrefix(filename, StdPrefix) {
		return s.Std, strings.TrimPrefix(filename, StdPrefix)
	}
	return s.FS, filename
}

// MockServer implements Server entirely in memory: a map from logical
// filename to contents, with an optional std map serving `<std>/` names.
// Used by tests and by any embedder that wants to hand the assembler
// already-loaded virtual source files instead of real ones.
type MockServer struct {
	Files map[string][]byte
	Std   map[string][]byte
}

// NewMockServer returns an empty MockServer ready to have Files populated.
func NewMockServer() *MockServer {
	return &MockServer{Files: map[string][]byte{}, Std: map[string][]byte{}}
}

// PutString registers filename with the given textual contents, a
// convenience for building test fixtures.
func (m *MockServer) PutString(filename, contents string) {
	m.Files[filename] = []byte(contents)
}

func (m *MockServer) GetBytes(filename string) ([]byte, error) {
	table := m.Files
	name := filename
	if strings.HasPrefix(filename, StdPrefix) {
		table = m.Std
		name = strings.TrimPrefix(filename, StdPrefix)
	}
	b, ok := table[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: filename, Err: fs.ErrNotExist}
	}
	return b, nil
}

func (m *MockServer) GetChars(filename string) (string, error) {
	b, err := m.GetBytes(filename)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("fsrv: file is not valid UTF-8: " + filename)
	}
	return string(b), nil
}
