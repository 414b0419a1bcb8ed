package clips

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultExt is the file extension of taunt assets.
const DefaultExt = ".ogg"

// Store answers whether a clip has an audio asset and where it lives.
type Store interface {
	Exists(clip int) bool
	Path(clip int) string
}

// DirStore maps clip n to "<dir>/<n><ext>".
type DirStore struct {
	dir string
	ext string
}

func NewDirStore(dir, ext string) *DirStore {
	if strings.TrimSpace(ext) == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &DirStore{dir: dir, ext: ext}
}

func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) Path(clip int) string {
	return filepath.Join(s.dir, strconv.Itoa(clip)+s.ext)
}

// Exists stats the asset on every call; assets may change between deploys.
func (s *DirStore) Exists(clip int) bool {
	info, err := os.Stat(s.Path(clip))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// List returns the clip numbers that currently have an asset, ascending.
func (s *DirStore) List() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read taunts dir %q: %w", s.dir, err)
	}
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, s.ext) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, s.ext))
		if err != nil || n <= 0 || strconv.Itoa(n)+s.ext != name {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}
