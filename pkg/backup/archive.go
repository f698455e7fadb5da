package backup

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// compressTree writes srcDir as a gzip-compressed tarball at
// archivePath. Entry names are relative to srcDir.
func compressTree(srcDir, archivePath string) error {
	out, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})

	for _, closer := range []io.Closer{tw, gz, out} {
		if err := closer.Close(); err != nil && walkErr == nil {
			walkErr = err
		}
	}
	if walkErr != nil {
		os.Remove(archivePath)
	}
	return walkErr
}

// listArchive streams the archive once, returning entry sizes keyed by
// name and the decoded manifest when present. Nothing is extracted.
func listArchive(path string) (map[string]int64, *Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, err
	}
	defer gz.Close()

	entries := make(map[string]int64)
	var manifest *Manifest

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		name := strings.TrimSuffix(header.Name, "/")
		entries[name] = header.Size

		if name == manifestName {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, nil, err
			}
			if manifest, err = readManifest(data); err != nil {
				return nil, nil, err
			}
		}
	}

	return entries, manifest, nil
}

// Verify checks the archive's integrity by listing its contents without
// extracting: the archive must be readable end to end, contain a
// manifest, and contain every file the manifest declares at the declared
// size. Failure invalidates the record; an unverifiable archive must
// never be offered for restore.
func (e *Engine) Verify(archivePath string) error {
	entries, manifest, err := listArchive(archivePath)
	if err != nil {
		return types.NewIntegrityError("verify backup archive", err)
	}
	if manifest == nil {
		return types.NewIntegrityError("verify backup archive", fmt.Errorf("manifest missing from archive"))
	}

	for _, file := range manifest.Files {
		size, ok := entries[filepath.ToSlash(file.Path)]
		if !ok {
			return types.NewIntegrityError("verify backup archive",
				fmt.Errorf("manifest entry %s missing from archive", file.Path))
		}
		if size != file.Size {
			return types.NewIntegrityError("verify backup archive",
				fmt.Errorf("archive entry %s has size %d, manifest says %d", file.Path, size, file.Size))
		}
	}

	return nil
}

// extractArchive unpacks the archive into destDir, rejecting entries
// that would escape it.
func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := filepath.FromSlash(header.Name)
		if strings.Contains(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("archive entry %q escapes extraction root", header.Name)
		}
		target := filepath.Join(destDir, name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
		}
	}
}
