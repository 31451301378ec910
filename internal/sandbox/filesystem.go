package sandbox

import (
	"context"
	"path"
	"strings"

	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/platform"
)

// scopedFileSystem roots a plugin's file access at plugins/<id>/ and
// rejects any path that would escape it (spec.md §4.6).
type scopedFileSystem struct {
	pluginID string
	root     string
	fs       platform.FileSystem
}

func newScopedFileSystem(pluginID string, fs platform.FileSystem) *scopedFileSystem {
	return &scopedFileSystem{pluginID: pluginID, root: "plugins/" + pluginID, fs: fs}
}

// resolve joins p onto the plugin's root and rejects any attempt to escape
// it via ".." segments or an absolute path.
func (s *scopedFileSystem) resolve(p string) (string, error) {
	if strings.HasPrefix(p, "/") {
		return "", kernelerr.Permission("sandbox.file_system", "file_system:escape", "").WithMetadata("path", p)
	}
	cleaned := path.Clean(s.root + "/" + p)
	if cleaned != s.root && !strings.HasPrefix(cleaned, s.root+"/") {
		return "", kernelerr.Permission("sandbox.file_system", "file_system:escape", "").WithMetadata("path", p)
	}
	return cleaned, nil
}

func (s *scopedFileSystem) unsupported() error {
	return kernelerr.Platform("sandbox.file_system", "filesystem", "read/write", false)
}

func (s *scopedFileSystem) Read(ctx context.Context, p string) ([]byte, error) {
	if s.fs == nil {
		return nil, s.unsupported()
	}
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	return s.fs.Read(ctx, full)
}

func (s *scopedFileSystem) Write(ctx context.Context, p string, data []byte) error {
	if s.fs == nil {
		return s.unsupported()
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	return s.fs.Write(ctx, full, data)
}

func (s *scopedFileSystem) Delete(ctx context.Context, p string) error {
	if s.fs == nil {
		return s.unsupported()
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	return s.fs.Delete(ctx, full)
}

func (s *scopedFileSystem) List(ctx context.Context, dir string) ([]string, error) {
	if s.fs == nil {
		return nil, s.unsupported()
	}
	full, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := s.fs.List(ctx, full)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}
