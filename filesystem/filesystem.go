package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrDirectoryNotFound = fmt.Errorf("filesystem: directory not found")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
)

// Filesystem is a read-only view of a directory tree. Every path is a slash
// separated path relative to the root; paths escaping the root are rejected
// with ErrInvalidPath.
type Filesystem interface {
	Root() string
	Resolve(rel string) (string, error)

	Open(rel string) (*os.File, error)
	ReadFile(rel string) ([]byte, error)
	Stat(rel string) (os.FileInfo, error)

	FileExists(rel string) (bool, error)
	IsFile(rel string) (bool, error)
	IsDirectory(rel string) (bool, error)
	ListDirectory(rel string) ([]os.FileInfo, error)

	// Walk visits every regular file below rel. Directories whose name
	// starts with a dot are skipped.
	Walk(rel string, fn func(rel string, info os.FileInfo) error) error
}

type localFileSystem struct {
	root string
}

func NewLocalFileSystem(root string) (Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
	}

	return &localFileSystem{root: abs}, nil
}

func (filesystem *localFileSystem) Root() string {
	return filesystem.root
}

// Clean normalizes rel to a rooted slash path. It fails for paths with
// parent segments, NUL bytes or backslashes.
func Clean(rel string) (string, error) {
	if strings.ContainsAny(rel, "\x00\\") {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", ErrInvalidPath
		}
	}
	return path.Clean("/" + rel), nil
}

func (filesystem *localFileSystem) Resolve(rel string) (string, error) {
	cleaned, err := Clean(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(filesystem.root, filepath.FromSlash(cleaned)), nil
}

func (filesystem *localFileSystem) Open(rel string) (*os.File, error) {
	abs, err := filesystem.Resolve(rel)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, rel)
		}
		return nil, err
	}
	return file, nil
}

func (filesystem *localFileSystem) ReadFile(rel string) ([]byte, error) {
	abs, err := filesystem.Resolve(rel)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, rel)
		}
		return nil, err
	}
	return content, nil
}

func (filesystem *localFileSystem) Stat(rel string) (os.FileInfo, error) {
	abs, err := filesystem.Resolve(rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, rel)
		}
		return nil, err
	}
	return info, nil
}

func (filesystem *localFileSystem) FileExists(rel string) (bool, error) {
	_, err := filesystem.Stat(rel)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (filesystem *localFileSystem) IsFile(rel string) (bool, error) {
	info, err := filesystem.Stat(rel)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (filesystem *localFileSystem) IsDirectory(rel string) (bool, error) {
	info, err := filesystem.Stat(rel)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (filesystem *localFileSystem) ListDirectory(rel string) ([]os.FileInfo, error) {
	abs, err := filesystem.Resolve(rel)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, rel)
		}
		return nil, err
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func (filesystem *localFileSystem) Walk(rel string, fn func(rel string, info os.FileInfo) error) error {
	start, err := filesystem.Resolve(rel)
	if err != nil {
		return err
	}

	return filepath.WalkDir(start, func(abs string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if abs != start && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(filesystem.root, abs)
		if err != nil {
			return err
		}
		return fn("/"+filepath.ToSlash(relPath), info)
	})
}
