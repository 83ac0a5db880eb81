package rubric

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrRubricNotFound is returned when no rubric exists for a requested
// (role, dimension) pair or version. Callers must treat this as a hard
// failure for that dimension; the registry never falls back to another
// dimension's criteria.
var ErrRubricNotFound = fmt.Errorf("rubric not found")

// File is the on-disk YAML format: all versions of one (role, dimension)
// rubric plus a pointer to the active version.
type File struct {
	Role      Role      `yaml:"role"`
	Dimension Dimension `yaml:"dimension"`

	// Active is the version string of the live rubric. If empty, the highest
	// version in the file is active.
	Active string `yaml:"active,omitempty"`

	Versions []VersionEntry `yaml:"versions"`
}

// VersionEntry is one version snapshot within a rubric file.
type VersionEntry struct {
	Version  string      `yaml:"version"`
	Criteria []Criterion `yaml:"criteria"`
}

// pairKey indexes rubrics by role and dimension.
type pairKey struct {
	role      Role
	dimension Dimension
}

// Registry resolves rubric versions by role and dimension. It is safe for
// concurrent use; Reload swaps the whole index atomically.
type Registry struct {
	mu     sync.RWMutex
	dir    string
	logger *slog.Logger

	// active maps (role, dimension) to the live version string.
	active map[pairKey]string

	// versions maps (role, dimension) to version string to snapshot.
	versions map[pairKey]map[string]*Version
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry backed by a directory of YAML rubric files
// and performs the initial load.
func NewRegistry(dir string, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		dir:      dir,
		logger:   slog.Default(),
		active:   make(map[pairKey]string),
		versions: make(map[pairKey]map[string]*Version),
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// NewStaticRegistry creates a registry from in-memory versions, for tests and
// embedded use. The last version added for a pair becomes active unless a
// later call overrides it.
func NewStaticRegistry(versions ...*Version) (*Registry, error) {
	r := &Registry{
		logger:   slog.Default(),
		active:   make(map[pairKey]string),
		versions: make(map[pairKey]map[string]*Version),
	}

	for _, v := range versions {
		if err := validateVersion(v); err != nil {
			return nil, err
		}
		key := pairKey{role: v.Role, dimension: v.Dimension}
		if r.versions[key] == nil {
			r.versions[key] = make(map[string]*Version)
		}
		r.versions[key][v.Version] = v
		r.active[key] = v.Version
	}

	return r, nil
}

// Active returns the live rubric version for a (role, dimension) pair.
func (r *Registry) Active(role Role, dimension Dimension) (*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := pairKey{role: role, dimension: dimension}
	versionStr, ok := r.active[key]
	if !ok {
		return nil, fmt.Errorf("no active rubric for role %s dimension %s: %w",
			role, dimension, ErrRubricNotFound)
	}

	return r.lookupLocked(key, versionStr)
}

// Get returns a specific rubric version for a (role, dimension) pair.
func (r *Registry) Get(role Role, dimension Dimension, version string) (*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookupLocked(pairKey{role: role, dimension: dimension}, version)
}

// List returns every loaded version, sorted by role, dimension, version.
func (r *Registry) List() []*Version {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Version
	for _, byVersion := range r.versions {
		for _, v := range byVersion {
			out = append(out, v)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		if out[i].Dimension != out[j].Dimension {
			return out[i].Dimension < out[j].Dimension
		}
		return out[i].Version < out[j].Version
	})

	return out
}

// lookupLocked resolves a version under a held read lock.
func (r *Registry) lookupLocked(key pairKey, versionStr string) (*Version, error) {
	byVersion, ok := r.versions[key]
	if !ok {
		return nil, fmt.Errorf("no rubric for role %s dimension %s: %w",
			key.role, key.dimension, ErrRubricNotFound)
	}

	v, ok := byVersion[versionStr]
	if !ok {
		return nil, fmt.Errorf("no rubric version %s for role %s dimension %s: %w",
			versionStr, key.role, key.dimension, ErrRubricNotFound)
	}

	return v, nil
}

// Reload re-reads every rubric file in the directory and atomically swaps the
// index. A file that fails validation aborts the reload, leaving the previous
// index in place.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return nil // Static registry, nothing to reload
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read rubric directory: %w", err)
	}

	active := make(map[pairKey]string)
	versions := make(map[pairKey]map[string]*Version)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		file, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("load rubric file %s: %w", entry.Name(), err)
		}

		key := pairKey{role: file.Role, dimension: file.Dimension}
		if _, exists := versions[key]; exists {
			return fmt.Errorf("duplicate rubric for role %s dimension %s in %s",
				file.Role, file.Dimension, entry.Name())
		}

		byVersion := make(map[string]*Version, len(file.Versions))
		for _, ve := range file.Versions {
			v := &Version{
				Role:      file.Role,
				Dimension: file.Dimension,
				Version:   ve.Version,
				Criteria:  ve.Criteria,
			}
			if err := validateVersion(v); err != nil {
				return fmt.Errorf("rubric file %s: %w", entry.Name(), err)
			}
			byVersion[ve.Version] = v
		}

		activeVersion := file.Active
		if activeVersion == "" {
			activeVersion = highestVersion(byVersion)
		}
		if _, ok := byVersion[activeVersion]; !ok {
			return fmt.Errorf("rubric file %s: active version %s not defined",
				entry.Name(), activeVersion)
		}

		versions[key] = byVersion
		active[key] = activeVersion
	}

	r.mu.Lock()
	r.active = active
	r.versions = versions
	r.mu.Unlock()

	r.logger.Info("Rubric registry loaded",
		"dir", r.dir,
		"pairs", len(versions))

	return nil
}

// loadFile parses one rubric YAML file.
func loadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if !file.Role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", file.Role)
	}
	if !file.Dimension.IsValid() {
		return nil, fmt.Errorf("unknown dimension %q", file.Dimension)
	}
	if len(file.Versions) == 0 {
		return nil, fmt.Errorf("no versions defined")
	}

	return &file, nil
}

// validateVersion enforces the rubric invariants: non-empty version string,
// at least one criterion, and weights summing to exactly 100.
func validateVersion(v *Version) error {
	if v.Version == "" {
		return fmt.Errorf("rubric version string is required")
	}
	if len(v.Criteria) == 0 {
		return fmt.Errorf("rubric %s/%s@%s has no criteria", v.Role, v.Dimension, v.Version)
	}

	for _, c := range v.Criteria {
		if c.Name == "" {
			return fmt.Errorf("rubric %s/%s@%s has a criterion with no name",
				v.Role, v.Dimension, v.Version)
		}
		if c.MaxScore <= 0 {
			return fmt.Errorf("rubric %s/%s@%s criterion %s: max_score must be positive",
				v.Role, v.Dimension, v.Version, c.Name)
		}
		if c.Weight <= 0 {
			return fmt.Errorf("rubric %s/%s@%s criterion %s: weight must be positive",
				v.Role, v.Dimension, v.Version, c.Name)
		}
	}

	if sum := v.weightSum(); sum != 100 {
		return fmt.Errorf("rubric %s/%s@%s: criterion weights sum to %d, want 100",
			v.Role, v.Dimension, v.Version, sum)
	}

	return nil
}

// highestVersion picks the lexically highest version string. Rubric versions
// use zero-padded-free semver, so this matches dotted numeric ordering for
// single-digit components; files with multi-digit components should set
// Active explicitly.
func highestVersion(byVersion map[string]*Version) string {
	var highest string
	for v := range byVersion {
		if v > highest {
			highest = v
		}
	}
	return highest
}
