package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
)

// File is an encoded artifact bound for Path
type File struct {
	Path string
	Data []byte
}

// WriteFiles stages every file as a temporary sibling and only renames
// them into place once all of them have been written and synced. On
// failure the staged temporaries are removed.
func WriteFiles(files ...File) (err error) {
	temps := make([]string, 0, len(files))
	defer func() {
		if err != nil {
			for _, t := range temps {
				os.Remove(t)
			}
		}
	}()

	for _, f := range files {
		tmp, err := writeTemp(f)
		if err != nil {
			return err
		}
		temps = append(temps, tmp)
	}

	for i, f := range files {
		if err := os.Rename(temps[i], f.Path); err != nil {
			return fmt.Errorf("error moving %s into place: %w", f.Path, err)
		}
	}
	return nil
}

func writeTemp(f File) (string, error) {
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file for %s: %w", f.Path, err)
	}
	name := tmp.Name()

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("error writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("error syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("error closing %s: %w", name, err)
	}
	return name, nil
}

// SaveScaler atomically writes a scaler artifact to path
func SaveScaler(path string, s *model.Scaler) error {
	return WriteFiles(File{Path: path, Data: EncodeScaler(s)})
}

// SaveForest atomically writes a forest artifact to path
func SaveForest(path string, f *model.Forest) error {
	return WriteFiles(File{Path: path, Data: EncodeForest(f)})
}

func readArtifact(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingError{Path: path, Err: err}
	}
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return b, nil
}

// LoadScaler reads a scaler artifact. Absent files yield *MissingError,
// anything unreadable or undecodable yields *CorruptError.
func LoadScaler(path string) (*model.Scaler, error) {
	b, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	s, err := DecodeScaler(b)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return s, nil
}

// LoadForest reads a forest artifact with the same error contract as LoadScaler
func LoadForest(path string) (*model.Forest, error) {
	b, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	f, err := DecodeForest(b)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return f, nil
}
