package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CollectionKind groups reference collections.
type CollectionKind string

const (
	CollectionArtists CollectionKind = "artists"
	CollectionStyles  CollectionKind = "styles"
)

// CollectionKinds lists every kind in display order.
var CollectionKinds = []CollectionKind{CollectionArtists, CollectionStyles}

// ErrCollectionNotFound is returned when a named collection has no directory.
var ErrCollectionNotFound = errors.New("reference collection not found")

// ReferenceExtensions are the file types a collection lists as references.
var ReferenceExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// ParseCollectionKind accepts "artists"/"styles" and their singular forms.
// An empty string or "all" yields "" which callers treat as every kind.
func ParseCollectionKind(raw string) (CollectionKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return "", nil
	case "artist", "artists":
		return CollectionArtists, nil
	case "style", "styles":
		return CollectionStyles, nil
	default:
		return "", NewValidationError("collection type", fmt.Sprintf("unknown %q (want artists, styles or all)", raw))
	}
}

// Singular returns "artist" or "style".
func (k CollectionKind) Singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// IsReferenceFile reports whether name has one of the ReferenceExtensions.
func IsReferenceFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range ReferenceExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Collection is one named set of reference images.
type Collection struct {
	Kind       CollectionKind `json:"type"`
	Name       string         `json:"name"`
	References []string       `json:"references"`
}

// CollectionMeta is the metadata file kept next to a collection's images.
type CollectionMeta struct {
	Name       string                   `yaml:"name" json:"name"`
	Kind       CollectionKind           `yaml:"type" json:"type"`
	References map[string]ReferenceMeta `yaml:"references" json:"references"`
}

// ReferenceMeta describes a single stored reference image.
type ReferenceMeta struct {
	FileName string    `yaml:"file_name" json:"file_name"`
	AddedAt  time.Time `yaml:"added_at" json:"added_at"`
	Source   string    `yaml:"source,omitempty" json:"source,omitempty"`
	Notes    string    `yaml:"notes,omitempty" json:"notes,omitempty"`
	Tags     []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Matches reports whether the notes or tags contain needle (already lowercased).
func (m ReferenceMeta) Matches(needle string) bool {
	if strings.Contains(strings.ToLower(m.Notes), needle) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// AddReference controls how an image enters a collection.
type AddReference struct {
	Move  bool
	Notes string
	Tags  []string
}
