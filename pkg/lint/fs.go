package lint

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// fileSystem lets the linter run over the working tree or an fs.FS such as
// the embedded built-in skills.
type fileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
	Glob(pattern string) ([]string, error)
	Dir(name string) string
	Join(elem ...string) string
	Base(name string) string
}

type osFS struct{}

func (osFS) ReadFile(name string) ([]byte, error)         { return os.ReadFile(name) }
func (osFS) Stat(name string) (fs.FileInfo, error)        { return os.Stat(name) }
func (osFS) WalkDir(root string, fn fs.WalkDirFunc) error { return filepath.WalkDir(root, fn) }
func (osFS) Glob(pattern string) ([]string, error)        { return doublestar.FilepathGlob(pattern) }
func (osFS) Dir(name string) string                       { return filepath.Dir(name) }
func (osFS) Join(elem ...string) string                   { return filepath.Join(elem...) }
func (osFS) Base(name string) string                      { return filepath.Base(name) }

type ioFS struct {
	fsys fs.FS
}

func (f ioFS) ReadFile(name string) ([]byte, error)         { return fs.ReadFile(f.fsys, name) }
func (f ioFS) Stat(name string) (fs.FileInfo, error)        { return fs.Stat(f.fsys, name) }
func (f ioFS) WalkDir(root string, fn fs.WalkDirFunc) error { return fs.WalkDir(f.fsys, root, fn) }
func (f ioFS) Glob(pattern string) ([]string, error)        { return doublestar.Glob(f.fsys, pattern) }
func (ioFS) Dir(name string) string                         { return path.Dir(name) }
func (ioFS) Join(elem ...string) string                     { return path.Join(elem...) }
func (ioFS) Base(name string) string                        { return path.Base(name) }
