package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
)

func TestParseCollectionKind(t *testing.T) {
	tests := []struct {
		in   string
		want domain.CollectionKind
	}{
		{"", ""},
		{"all", ""},
		{"artist", domain.CollectionArtists},
		{" Artists ", domain.CollectionArtists},
		{"style", domain.CollectionStyles},
		{"STYLES", domain.CollectionStyles},
	}
	for _, tt := range tests {
		got, err := domain.ParseCollectionKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := domain.ParseCollectionKind("albums")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIsReferenceFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp", "e.gif"} {
		assert.True(t, domain.IsReferenceFile(name), name)
	}
	for _, name := range []string{"metadata.yaml", "cover.tiff", "noext", ".png.bak"} {
		assert.False(t, domain.IsReferenceFile(name), name)
	}
	assert.Equal(t, "artist", domain.CollectionArtists.Singular())
}
