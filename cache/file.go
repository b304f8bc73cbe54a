package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default cache file name inside a project directory.
const FileName = "readkit.cache.yaml"

// FileVersion is the cache file format version.
const FileVersion = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// FileEntry is the cached state of one article.
type FileEntry struct {
	Signature string    `yaml:"signature"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Segments  []Segment `yaml:"segments"`
}

// File is a store backed by a single YAML file. Every Put and Delete
// rewrites the file.
type File struct {
	Version  int                   `yaml:"version"`
	Articles map[string]*FileEntry `yaml:"articles"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
	now  func() time.Time
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// OpenFile reads the cache file at path. A missing file yields an empty
// store; the file is created on the first write.
func OpenFile(path string) (*File, error) {
	f := &File{
		Version:  FileVersion,
		Articles: make(map[string]*FileEntry),
		path:     path,
		now:      time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.Version > FileVersion {
		return nil, fmt.Errorf("%s: unsupported cache version %d", path, f.Version)
	}
	if f.Articles == nil {
		f.Articles = make(map[string]*FileEntry)
	}
	return f, nil
}

// save writes the file. Callers hold f.mu.
func (f *File) save() error {
	if f.path == "" {
		return fmt.Errorf("cache file path not set")
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// Path returns the cache file path.
func (f *File) Path() string {
	return f.path
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func (f *File) Get(_ context.Context, key Key) ([]Segment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.Articles[key.ArticleID]
	if !ok || e.Signature != key.Signature {
		return nil, false, nil
	}
	return Normalize(Clone(e.Segments)), true, nil
}

func (f *File) Put(_ context.Context, key Key, segs []Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Articles[key.ArticleID] = &FileEntry{
		Signature: key.Signature,
		UpdatedAt: f.now().UTC(),
		Segments:  Clone(segs),
	}
	return f.save()
}

func (f *File) Delete(_ context.Context, articleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.Articles[articleID]; !ok {
		return nil
	}
	delete(f.Articles, articleID)
	return f.save()
}

// Clear drops every article.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Articles = make(map[string]*FileEntry)
	return f.save()
}

func (f *File) Close() error { return nil }

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of cached articles and segments.
func (f *File) Stats() (articles, segments int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	articles = len(f.Articles)
	for _, e := range f.Articles {
		segments += len(e.Segments)
	}
	return
}

// IDs returns the cached article ids, sorted.
func (f *File) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.Articles))
	for id := range f.Articles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summary returns a human-readable summary string.
func (f *File) Summary() string {
	articles, segments := f.Stats()
	if articles == 0 {
		return "empty"
	}

	var parts []string
	for _, id := range f.IDs() {
		f.mu.Lock()
		c := Counts(f.Articles[id].Segments)
		f.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d/%d done", id, c[Done], c[Done]+c[Pending]+c[InFlight]+c[Failed]))
	}
	return fmt.Sprintf("%d articles, %d segments (%s)", articles, segments, strings.Join(parts, ", "))
}
