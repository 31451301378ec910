package plugin

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qorzen/kernel/pkg/logging"
)

// bundleExt is the extension for packaged plugin bundles — a zip archive
// containing plugin.json at its root, read via the standard library's
// archive/zip since no ecosystem archive reader appears anywhere in the
// retrieval pack.
const bundleExt = ".muplug"

// Discover scans roots for plugin candidates: directories containing a
// plugin.json, or .muplug bundle files. Malformed or signature-invalid
// candidates are logged and skipped rather than aborting discovery
// (spec.md §4.5).
func Discover(roots []string, verify SignatureVerifier) []*Manifest {
	var found []*Manifest
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			logging.Warn("plugin.discovery", "cannot read plugin root %s: %v", root, err)
			continue
		}
		for _, e := range entries {
			full := filepath.Join(root, e.Name())
			var m *Manifest
			var err error
			switch {
			case e.IsDir():
				m, err = loadDirManifest(full)
			case strings.HasSuffix(e.Name(), bundleExt):
				m, err = loadBundleManifest(full)
			default:
				continue
			}
			if err != nil {
				logging.Warn("plugin.discovery", "skipping malformed candidate %s: %v", full, err)
				continue
			}
			if m.RequiresSignature {
				if verify == nil || !verify(full, m) {
					logging.Warn("plugin.discovery", "skipping %s: signature verification failed", m.ID)
					continue
				}
			}
			found = append(found, m)
		}
	}
	return found
}

// SignatureVerifier checks a candidate's signature against the current
// account/platform policy; nil means "no signature enforcement" (dev
// mode). A concrete verifier is supplied by the kernel orchestrator.
type SignatureVerifier func(path string, m *Manifest) bool

func loadDirManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "plugin.json"))
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

func loadBundleManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "plugin.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return ParseManifest(data)
	}
	return nil, os.ErrNotExist
}
