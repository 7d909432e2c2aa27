// Package store persists hierarchy nodes as human-readable YAML files
// under the project state directory, one file per node:
//
//	visions/<vision-slug>/vision.yaml
//	visions/<vision-slug>/epics/<slug>.yaml
//	visions/<vision-slug>/roadmaps/<slug>.yaml
//	visions/<vision-slug>/plans/<slug>.yaml
//
// Every write replaces its file atomically via a temp file and rename,
// and holds the owning vision's advisory lock, so separate cairn
// processes on the same project never interleave writers of one tree
// and readers never observe a partial file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/pkg/models"
)

const (
	visionsDirName  = "visions"
	visionFileName  = "vision.yaml"
	epicsDirName    = "epics"
	roadmapsDirName = "roadmaps"
	plansDirName    = "plans"

	nodeFileMode = 0o644
	stateDirMode = 0o755

	yamlExt = ".yaml"
)

// ErrNotFound is returned when a requested node file does not exist.
var ErrNotFound = errors.New("node not found")

// Store reads and writes hierarchy node files under a single project
// state directory, typically ".cairn" inside the project root.
type Store struct {
	root string
	now  func() time.Time

	mu sync.Mutex
}

// New returns a Store rooted at the given state directory.
func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Root returns the state directory the store was rooted at.
func (s *Store) Root() string { return s.root }

// VisionDir returns the directory holding one vision's tree.
func (s *Store) VisionDir(visionSlug string) string {
	return filepath.Join(s.root, visionsDirName, visionSlug)
}

func (s *Store) visionPath(visionSlug string) string {
	return filepath.Join(s.VisionDir(visionSlug), visionFileName)
}

func (s *Store) epicPath(visionSlug, slug string) string {
	return filepath.Join(s.VisionDir(visionSlug), epicsDirName, slug+yamlExt)
}

func (s *Store) roadmapPath(visionSlug, slug string) string {
	return filepath.Join(s.VisionDir(visionSlug), roadmapsDirName, slug+yamlExt)
}

func (s *Store) planPath(visionSlug, slug string) string {
	return filepath.Join(s.VisionDir(visionSlug), plansDirName, slug+yamlExt)
}

// SaveVision writes the vision's root file.
func (s *Store) SaveVision(v *models.Vision) error {
	if v == nil {
		return fmt.Errorf("save vision: nil vision")
	}
	return s.withVisionLock(v.Slug, func() error {
		v.Touch(s.now())
		return s.writeNode(s.visionPath(v.Slug), v)
	})
}

// SaveEpic writes one epic file under the given vision.
func (s *Store) SaveEpic(visionSlug string, e *models.Epic) error {
	if e == nil {
		return fmt.Errorf("save epic: nil epic")
	}
	return s.withVisionLock(visionSlug, func() error {
		e.Touch(s.now())
		return s.writeNode(s.epicPath(visionSlug, e.Slug), e)
	})
}

// SaveRoadmap writes one roadmap file under the given vision.
func (s *Store) SaveRoadmap(visionSlug string, rm *models.Roadmap) error {
	if rm == nil {
		return fmt.Errorf("save roadmap: nil roadmap")
	}
	return s.withVisionLock(visionSlug, func() error {
		rm.Touch(s.now())
		return s.writeNode(s.roadmapPath(visionSlug, rm.Slug), rm)
	})
}

// SavePlan writes one phase plan file under the given vision.
func (s *Store) SavePlan(visionSlug string, p *models.PhasePlan) error {
	if p == nil {
		return fmt.Errorf("save plan: nil plan")
	}
	return s.withVisionLock(visionSlug, func() error {
		p.Touch(s.now())
		return s.writeNode(s.planPath(visionSlug, p.Slug), p)
	})
}

// SaveBatch writes every node of a materialized hierarchy under a
// single lock acquisition, vision root first.
func (s *Store) SaveBatch(b *hierarchy.Batch) error {
	if b == nil || b.Vision == nil {
		return fmt.Errorf("save batch: nil batch")
	}
	visionSlug := b.Vision.Slug
	return s.withVisionLock(visionSlug, func() error {
		now := s.now()
		b.Vision.Touch(now)
		if err := s.writeNode(s.visionPath(visionSlug), b.Vision); err != nil {
			return err
		}
		for _, e := range b.Epics {
			e.Touch(now)
			if err := s.writeNode(s.epicPath(visionSlug, e.Slug), e); err != nil {
				return err
			}
		}
		for _, rm := range b.Roadmaps {
			rm.Touch(now)
			if err := s.writeNode(s.roadmapPath(visionSlug, rm.Slug), rm); err != nil {
				return err
			}
		}
		for _, p := range b.Plans {
			p.Touch(now)
			if err := s.writeNode(s.planPath(visionSlug, p.Slug), p); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadVision reads a vision's root file.
func (s *Store) LoadVision(visionSlug string) (*models.Vision, error) {
	var v models.Vision
	if err := s.readNode(s.visionPath(visionSlug), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadEpic reads one epic file under the given vision.
func (s *Store) LoadEpic(visionSlug, slug string) (*models.Epic, error) {
	var e models.Epic
	if err := s.readNode(s.epicPath(visionSlug, slug), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadRoadmap reads one roadmap file under the given vision.
func (s *Store) LoadRoadmap(visionSlug, slug string) (*models.Roadmap, error) {
	var rm models.Roadmap
	if err := s.readNode(s.roadmapPath(visionSlug, slug), &rm); err != nil {
		return nil, err
	}
	return &rm, nil
}

// LoadPlan reads one phase plan file under the given vision.
func (s *Store) LoadPlan(visionSlug, slug string) (*models.PhasePlan, error) {
	var p models.PhasePlan
	if err := s.readNode(s.planPath(visionSlug, slug), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadTree reads a vision and every child node beneath it. Children
// come back in file-name order within each level.
func (s *Store) LoadTree(visionSlug string) (*hierarchy.Batch, error) {
	v, err := s.LoadVision(visionSlug)
	if err != nil {
		return nil, err
	}
	batch := &hierarchy.Batch{Vision: v}
	dir := s.VisionDir(visionSlug)

	epicFiles, err := listYAML(filepath.Join(dir, epicsDirName))
	if err != nil {
		return nil, err
	}
	for _, name := range epicFiles {
		var e models.Epic
		if err := s.readNode(filepath.Join(dir, epicsDirName, name), &e); err != nil {
			return nil, err
		}
		batch.Epics = append(batch.Epics, &e)
	}

	roadmapFiles, err := listYAML(filepath.Join(dir, roadmapsDirName))
	if err != nil {
		return nil, err
	}
	for _, name := range roadmapFiles {
		var rm models.Roadmap
		if err := s.readNode(filepath.Join(dir, roadmapsDirName, name), &rm); err != nil {
			return nil, err
		}
		batch.Roadmaps = append(batch.Roadmaps, &rm)
	}

	planFiles, err := listYAML(filepath.Join(dir, plansDirName))
	if err != nil {
		return nil, err
	}
	for _, name := range planFiles {
		var p models.PhasePlan
		if err := s.readNode(filepath.Join(dir, plansDirName, name), &p); err != nil {
			return nil, err
		}
		batch.Plans = append(batch.Plans, &p)
	}

	return batch, nil
}

// ListVisionSlugs returns the slug of every vision directory present,
// sorted by name. A missing visions directory is an empty project, not
// an error.
func (s *Store) ListVisionSlugs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, visionsDirName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list visions: %w", err)
	}
	var slugs []string
	for _, entry := range entries {
		if entry.IsDir() {
			slugs = append(slugs, entry.Name())
		}
	}
	return slugs, nil
}

// DeleteVision removes a vision's entire directory tree.
func (s *Store) DeleteVision(visionSlug string) error {
	return s.withVisionLock(visionSlug, func() error {
		if err := os.RemoveAll(s.VisionDir(visionSlug)); err != nil {
			return fmt.Errorf("delete vision: %w", err)
		}
		return nil
	})
}

// withVisionLock serializes writers of one vision tree, within this
// process through the store mutex and across processes through the
// vision root's sidecar lock.
func (s *Store) withVisionLock(visionSlug string, fn func() error) error {
	if visionSlug == "" {
		return fmt.Errorf("empty vision slug")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, err := AcquireLock(s.visionPath(visionSlug))
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

func (s *Store) writeNode(path string, node any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := WriteFileAtomic(path, data, nodeFileMode); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) readNode(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory followed by a rename, so readers only ever see the old
// contents or the new contents, never a partial write. Parent
// directories are created as needed.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), stateDirMode); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// listYAML returns the YAML file names in dir, in directory order. A
// missing dir is an empty tree level, not an error.
func listYAML(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), yamlExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
