// Package attachments keeps the files that queued emails reference by path.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("file type not supported")
	ErrTooLarge        = errors.New("file exceeds upload limit")
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Attachment struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
}

type Store struct {
	Dir      string
	MaxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}, nil
}

// Save writes r under a collision-free name "<8 hex>_<original name>".
func (s *Store) Save(name string, r io.Reader) (Attachment, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || !allowedExtensions[strings.ToLower(filepath.Ext(base))] {
		return Attachment{}, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
	}

	filename := strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + "_" + base
	path := filepath.Join(s.Dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Attachment{}, err
	}

	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && n > s.MaxBytes {
		err = fmt.Errorf("%w (%d bytes)", ErrTooLarge, s.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return Attachment{}, err
	}

	return Attachment{Filename: filename, FilePath: path, Size: n}, nil
}

// List returns the stored files sorted by name.
func (s *Store) List() ([]Attachment, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Attachment{}, nil
		}
		return nil, err
	}

	out := make([]Attachment, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Attachment{
			Filename: e.Name(),
			FilePath: filepath.Join(s.Dir, e.Name()),
			Size:     info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}
