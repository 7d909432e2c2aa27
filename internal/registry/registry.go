// Package registry maintains the project-wide index of vision roots,
// persisted as registry.yaml in the state directory. The index is a
// derived cache over the vision directories, never authoritative:
// Rebuild restores it from disk at any time.
package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/cairnhq/cairn/internal/store"
	"github.com/cairnhq/cairn/pkg/models"
)

const registryFileName = "registry.yaml"

// ErrNotRegistered is returned when a slug has no index entry.
var ErrNotRegistered = errors.New("vision not registered")

// Entry is one vision root in the index, mirroring the root file's
// top-level fields so status listings never need to open the tree.
type Entry struct {
	Slug                 string            `yaml:"slug"`
	Title                string            `yaml:"title"`
	PlanType             models.PlanType   `yaml:"plan_type"`
	Status               models.NodeStatus `yaml:"status"`
	CompletionPercentage float64           `yaml:"completion_percentage"`
	Created              time.Time         `yaml:"created"`
	Updated              time.Time         `yaml:"updated"`
}

// registryFile is the on-disk shape of registry.yaml.
type registryFile struct {
	Visions []Entry `yaml:"visions"`
}

// Registry indexes the vision roots of one project. All methods load
// the index fresh from disk, so separate cairn processes observe each
// other's registrations.
type Registry struct {
	store *store.Store
	path  string

	mu sync.Mutex
}

// New returns a Registry persisted inside the store's state directory.
func New(s *store.Store) *Registry {
	return &Registry{
		store: s,
		path:  filepath.Join(s.Root(), registryFileName),
	}
}

// Path returns the location of the index file.
func (r *Registry) Path() string { return r.path }

// Register upserts the index entry for a vision root.
func (r *Registry) Register(v *models.Vision) error {
	if v == nil {
		return fmt.Errorf("register: nil vision")
	}
	return r.update(func(f *registryFile) error {
		upsert(f, entryFor(v))
		return nil
	})
}

// Deregister removes a vision from the index. The vision's files are
// left alone; removing an absent slug is a no-op.
func (r *Registry) Deregister(slug string) error {
	return r.update(func(f *registryFile) error {
		kept := f.Visions[:0]
		for _, entry := range f.Visions {
			if entry.Slug != slug {
				kept = append(kept, entry)
			}
		}
		f.Visions = kept
		return nil
	})
}

// Get returns the index entry for a slug.
func (r *Registry) Get(slug string) (*Entry, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, entry := range f.Visions {
		if entry.Slug == slug {
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotRegistered, slug)
}

// List returns every index entry in stored order.
func (r *Registry) List() ([]Entry, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	return f.Visions, nil
}

// Slugs returns every registered slug, sorted. Hierarchy creation feeds
// this into unique slug generation.
func (r *Registry) Slugs() ([]string, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(f.Visions))
	for _, entry := range f.Visions {
		slugs = append(slugs, entry.Slug)
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Rebuild rescans the vision directories and rewrites the index from
// what is actually on disk. A root whose file cannot be read or parsed
// is skipped with a warning, so one corrupt vision never hides the
// rest. Returns the number of roots indexed.
func (r *Registry) Rebuild() (int, error) {
	slugs, err := r.store.ListVisionSlugs()
	if err != nil {
		return 0, fmt.Errorf("rebuild registry: %w", err)
	}

	rebuilt := registryFile{}
	for _, slug := range slugs {
		v, err := r.store.LoadVision(slug)
		if err != nil {
			log.Printf("[registry] skipping unreadable vision %s: %v", slug, err)
			continue
		}
		rebuilt.Visions = append(rebuilt.Visions, entryFor(v))
	}

	err = r.update(func(f *registryFile) error {
		f.Visions = rebuilt.Visions
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rebuilt.Visions), nil
}

// update runs a load-modify-write cycle under both the in-process mutex
// and the index file's advisory lock.
func (r *Registry) update(fn func(*registryFile) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, err := store.AcquireLock(r.path)
	if err != nil {
		return err
	}
	defer lock.Release()

	f, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := store.WriteFileAtomic(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// load reads the index file. A missing file is an empty index.
func (r *Registry) load() (*registryFile, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return &registryFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return &f, nil
}

func entryFor(v *models.Vision) Entry {
	return Entry{
		Slug:                 v.Slug,
		Title:                v.Title,
		PlanType:             v.PlanType,
		Status:               v.Status,
		CompletionPercentage: v.CompletionPercentage,
		Created:              v.Created,
		Updated:              v.Updated,
	}
}

func upsert(f *registryFile, entry Entry) {
	for i := range f.Visions {
		if f.Visions[i].Slug == entry.Slug {
			f.Visions[i] = entry
			return
		}
	}
	f.Visions = append(f.Visions, entry)
}
