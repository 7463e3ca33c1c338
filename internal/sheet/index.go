package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ringName matches ring sheet files such as ring_0.png or ring_-15.webp.
var ringName = regexp.MustCompile(`(?i)^ring_(-?\d+(?:\.\d+)?)\.(png|tga|webp|jpe?g)$`)

// ErrBadSheetSpec is returned by AddSpec for entries not of the form pitch=path.
var ErrBadSheetSpec = errors.New("sheet: expected pitch=path")

// Index maps ring pitch to the sheet holding that ring.
// Formats with alpha take priority over JPEG for the same pitch.
type Index struct {
	entries map[float64]string // pitch → full path
}

// RingSheet is one discovered ring sheet.
type RingSheet struct {
	Pitch float64
	Path  string
}

// BuildIndex scans dir (non-recursively) for ring sheets.
func BuildIndex(dir string) (*Index, error) {
	idx := &Index{entries: make(map[float64]string)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := ringName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		pitch, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())

		existing, exists := idx.entries[pitch]
		if !exists || (isJPEG(existing) && !isJPEG(path)) {
			idx.entries[pitch] = path
		}
	}
	return idx, nil
}

func isJPEG(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jpg" || ext == ".jpeg"
}

// Add registers a sheet path for pitch, replacing any existing entry.
func (idx *Index) Add(pitch float64, path string) {
	if idx.entries == nil {
		idx.entries = make(map[float64]string)
	}
	idx.entries[pitch] = path
}

// AddSpec registers an explicit "pitch=path" entry such as "-15=low/ring.png".
// It overrides whatever the scan found for that pitch.
func (idx *Index) AddSpec(spec string) error {
	p, path, ok := strings.Cut(spec, "=")
	if !ok || strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: %q", ErrBadSheetSpec, spec)
	}
	pitch, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadSheetSpec, spec)
	}
	idx.Add(pitch, strings.TrimSpace(path))
	return nil
}

// Rings returns the discovered sheets ordered by ascending pitch.
func (idx *Index) Rings() []RingSheet {
	out := make([]RingSheet, 0, len(idx.entries))
	for p, path := range idx.entries {
		out = append(out, RingSheet{Pitch: p, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pitch < out[j].Pitch })
	return out
}

// Len returns the number of indexed rings.
func (idx *Index) Len() int {
	return len(idx.entries)
}
