package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// ManifestFile is one file entry inside a backup manifest
type ManifestFile struct {
	// Path is relative to the backup tree root
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// Manifest enumerates everything a backup archive must contain. The
// content hashes are computed from the source tree before compression,
// closing the gap where only the archive listing would be checked.
type Manifest struct {
	ID         string                  `yaml:"id"`
	CreatedAt  time.Time               `yaml:"created_at"`
	Components []types.BackupComponent `yaml:"components"`
	Files      []ManifestFile          `yaml:"files"`
	TotalBytes int64                   `yaml:"total_bytes"`
}

// buildManifest walks the backup tree and records every file with its
// size and content hash
func buildManifest(id string, createdAt time.Time, root string, components []types.BackupComponent) (*Manifest, error) {
	m := &Manifest{
		ID:         id,
		CreatedAt:  createdAt,
		Components: components,
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		sum, size, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", rel, err)
		}

		m.Files = append(m.Files, ManifestFile{Path: rel, Size: size, SHA256: sum})
		m.TotalBytes += size
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// verifyTreeHashes re-checks every manifest hash against an extracted
// tree. Used by restore before any data is loaded back.
func verifyTreeHashes(root string, m *Manifest) error {
	for _, file := range m.Files {
		if file.Path == manifestName {
			continue
		}
		sum, size, err := hashFile(filepath.Join(root, file.Path))
		if err != nil {
			return types.NewIntegrityError("verify backup contents", err)
		}
		if size != file.Size || sum != file.SHA256 {
			return types.NewIntegrityError("verify backup contents",
				fmt.Errorf("%s does not match its manifest hash", file.Path))
		}
	}
	return nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
