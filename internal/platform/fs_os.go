package platform

import (
	"context"
	"os"
	"path/filepath"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// OSFileSystem implements FileSystem over the host's filesystem, rooted at
// Root so every path is resolved relative to a single directory.
type OSFileSystem struct {
	Root string
}

// NewOSFileSystem constructs an OSFileSystem rooted at root, creating it
// if necessary.
func NewOSFileSystem(root string) (*OSFileSystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityHigh, "platform.fs", "creating root directory", err)
	}
	return &OSFileSystem{Root: root}, nil
}

func (f *OSFileSystem) resolve(path string) string {
	return filepath.Join(f.Root, filepath.Clean("/"+path))
}

func (f *OSFileSystem) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(f.resolve(path))
	if err != nil {
		return nil, kernelerr.IO("platform.fs.read", path, err)
	}
	return data, nil
}

func (f *OSFileSystem) Write(ctx context.Context, path string, data []byte) error {
	full := f.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return kernelerr.IO("platform.fs.write", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return kernelerr.IO("platform.fs.write", path, err)
	}
	return nil
}

func (f *OSFileSystem) Delete(ctx context.Context, path string) error {
	if err := os.RemoveAll(f.resolve(path)); err != nil {
		return kernelerr.IO("platform.fs.delete", path, err)
	}
	return nil
}

func (f *OSFileSystem) List(ctx context.Context, dir string) ([]FileMetadata, error) {
	entries, err := os.ReadDir(f.resolve(dir))
	if err != nil {
		return nil, kernelerr.IO("platform.fs.list", dir, err)
	}
	out := make([]FileMetadata, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileMetadata{Name: e.Name(), Size: info.Size(), IsDir: e.IsDir(), ModTime: info.ModTime()})
	}
	return out, nil
}

func (f *OSFileSystem) Mkdir(ctx context.Context, path string) error {
	if err := os.MkdirAll(f.resolve(path), 0o755); err != nil {
		return kernelerr.IO("platform.fs.mkdir", path, err)
	}
	return nil
}

func (f *OSFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(f.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, kernelerr.IO("platform.fs.exists", path, err)
}

func (f *OSFileSystem) Metadata(ctx context.Context, path string) (FileMetadata, error) {
	info, err := os.Stat(f.resolve(path))
	if err != nil {
		return FileMetadata{}, kernelerr.IO("platform.fs.metadata", path, err)
	}
	return FileMetadata{Name: info.Name(), Size: info.Size(), IsDir: info.IsDir(), ModTime: info.ModTime()}, nil
}
