// Package library keeps reference images on disk, one directory per artist or
// style collection, with a metadata.yaml describing each stored image.
package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/pkg/filesystem"
	"github.com/doeshing/afcover/internal/pkg/slug"
	"github.com/doeshing/afcover/internal/ports"
)

// MetadataFile is the per-collection metadata file name.
const MetadataFile = "metadata.yaml"

// FileLibrary implements ports.ReferenceLibrary under root/{artists,styles}/<slug>.
type FileLibrary struct {
	root string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileLibrary creates a library rooted at root. Directories are created lazily.
func NewFileLibrary(root string) *FileLibrary {
	if abs, err := filepath.Abs(filesystem.ExpandPath(root)); err == nil {
		root = abs
	}
	return &FileLibrary{root: root, now: time.Now}
}

// Root implements ports.ReferenceLibrary.
func (l *FileLibrary) Root() string {
	return l.root
}

// Collections implements ports.ReferenceLibrary. Collections are sorted by name.
func (l *FileLibrary) Collections(kind domain.CollectionKind) ([]domain.Collection, error) {
	stored, err := l.stored(kind)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Collection, 0, len(stored))
	for _, sc := range stored {
		out = append(out, sc.Collection)
	}
	return out, nil
}

// storedCollection pairs a collection with its directory.
type storedCollection struct {
	domain.Collection
	dir string
}

func (l *FileLibrary) stored(kind domain.CollectionKind) ([]storedCollection, error) {
	var out []storedCollection
	for _, k := range kindsOf(kind) {
		entries, err := os.ReadDir(filepath.Join(l.root, string(k)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(l.root, string(k), e.Name())
			refs, err := listReferences(dir)
			if err != nil {
				return nil, err
			}
			name := e.Name()
			if meta, err := readMetadata(dir); err == nil && meta.Name != "" {
				name = meta.Name
			}
			out = append(out, storedCollection{Collection: domain.Collection{Kind: k, Name: name, References: refs}, dir: dir})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// References implements ports.ReferenceLibrary.
func (l *FileLibrary) References(kind domain.CollectionKind, name string) ([]string, error) {
	dir, err := l.existingDir(kind, name)
	if err != nil {
		return nil, err
	}
	return listReferences(dir)
}

// Add implements ports.ReferenceLibrary. The image keeps its file name unless
// the collection already holds one by that name, in which case _1, _2, ...
// is appended to the stem.
func (l *FileLibrary) Add(kind domain.CollectionKind, name, source string, opts domain.AddReference) (string, error) {
	dir, err := l.dir(kind, name)
	if err != nil {
		return "", err
	}
	source = filesystem.ExpandPath(source)
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NewValidationError("image", fmt.Sprintf("file not found: %s", source))
		}
		return "", err
	}
	if info.IsDir() || !domain.IsReferenceFile(source) {
		return "", domain.NewValidationError("image", fmt.Sprintf("%s is not a reference image (%s)",
			source, strings.Join(domain.ReferenceExtensions, " ")))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return "", err
	}
	target := freeName(dir, filepath.Base(source))
	if opts.Move {
		err = moveFile(source, target)
	} else {
		err = copyFile(source, target)
	}
	if err != nil {
		return "", fmt.Errorf("store reference: %w", err)
	}

	meta, err := readMetadata(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return target, err
	}
	if meta.Name == "" {
		meta.Name = strings.TrimSpace(name)
	}
	meta.Kind = kind
	if meta.References == nil {
		meta.References = map[string]domain.ReferenceMeta{}
	}
	abs, _ := filepath.Abs(source)
	meta.References[filepath.Base(target)] = domain.ReferenceMeta{
		FileName: filepath.Base(target),
		AddedAt:  l.now().UTC(),
		Source:   abs,
		Notes:    opts.Notes,
		Tags:     opts.Tags,
	}
	return target, writeMetadata(dir, meta)
}

// Remove implements ports.ReferenceLibrary. Only files inside the library may be removed.
func (l *FileLibrary) Remove(path string) error {
	abs, err := filepath.Abs(filesystem.ExpandPath(path))
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return domain.NewValidationError("reference", fmt.Sprintf("%s is outside the library at %s", path, l.root))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(abs); err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	meta, err := readMetadata(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if _, ok := meta.References[filepath.Base(abs)]; !ok {
		return nil
	}
	delete(meta.References, filepath.Base(abs))
	return writeMetadata(dir, meta)
}

// Metadata implements ports.ReferenceLibrary. A collection without a metadata
// file gets an empty one.
func (l *FileLibrary) Metadata(kind domain.CollectionKind, name string) (domain.CollectionMeta, error) {
	dir, err := l.existingDir(kind, name)
	if err != nil {
		return domain.CollectionMeta{}, err
	}
	meta, err := readMetadata(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.CollectionMeta{}, err
	}
	if meta.Name == "" {
		meta.Name = name
	}
	meta.Kind = kind
	if meta.References == nil {
		meta.References = map[string]domain.ReferenceMeta{}
	}
	return meta, nil
}

// Search implements ports.ReferenceLibrary. A collection whose name matches
// returns all its references; otherwise only references whose file name (or,
// with includeMetadata, notes and tags) match are returned.
func (l *FileLibrary) Search(query string, kind domain.CollectionKind, includeMetadata bool) ([]domain.Collection, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}
	stored, err := l.stored(kind)
	if err != nil {
		return nil, err
	}

	var out []domain.Collection
	for _, c := range stored {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c.Collection)
			continue
		}
		var meta domain.CollectionMeta
		if includeMetadata {
			meta, _ = readMetadata(c.dir)
		}
		var hits []string
		for _, ref := range c.References {
			base := filepath.Base(ref)
			if strings.Contains(strings.ToLower(base), needle) || meta.References[base].Matches(needle) {
				hits = append(hits, ref)
			}
		}
		if len(hits) > 0 {
			out = append(out, domain.Collection{Kind: c.Kind, Name: c.Name, References: hits})
		}
	}
	return out, nil
}

func (l *FileLibrary) dir(kind domain.CollectionKind, name string) (string, error) {
	if kind != domain.CollectionArtists && kind != domain.CollectionStyles {
		return "", domain.NewValidationError("collection type", fmt.Sprintf("unknown %q", kind))
	}
	if strings.TrimSpace(name) == "" {
		return "", domain.NewValidationError(kind.Singular(), "name must not be empty")
	}
	return filepath.Join(l.root, string(kind), slug.Make(name)), nil
}

func (l *FileLibrary) existingDir(kind domain.CollectionKind, name string) (string, error) {
	dir, err := l.dir(kind, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s %q: %w", kind.Singular(), name, domain.ErrCollectionNotFound)
	}
	return dir, nil
}

func kindsOf(kind domain.CollectionKind) []domain.CollectionKind {
	if kind == "" {
		return domain.CollectionKinds
	}
	return []domain.CollectionKind{kind}
}

func listReferences(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	refs := []string{}
	for _, e := range entries {
		if e.IsDir() || !domain.IsReferenceFile(e.Name()) {
			continue
		}
		refs = append(refs, filepath.Join(dir, e.Name()))
	}
	return refs, nil
}

func freeName(dir, base string) string {
	target := filepath.Join(dir, base)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
			return target
		}
		target = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = filesystem.WriteAtomic(context.Background(), dst, in, domain.ArtifactFilePermissions)
	return err
}

// moveFile renames src, falling back to copy and delete across file systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func readMetadata(dir string) (domain.CollectionMeta, error) {
	var meta domain.CollectionMeta
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return meta, err
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse %s: %w", filepath.Join(dir, MetadataFile), err)
	}
	return meta, nil
}

func writeMetadata(dir string, meta domain.CollectionMeta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = filesystem.WriteAtomic(context.Background(), filepath.Join(dir, MetadataFile), bytes.NewReader(data), domain.ArtifactFilePermissions)
	return err
}

var _ ports.ReferenceLibrary = (*FileLibrary)(nil)
