package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
)

func testParser() *Parser {
	return NewParser(Vocabulary{
		Genres:  []string{"hip-hop", "jazz", "lo-fi", "pop", "r&b", "synthwave"},
		Styles:  []string{"folk", "fusion", "ghazal", "modern", "romantic", "traditional"},
		Regions: []string{"herati", "kabuli", "kandahari", "mazari", "panjshiri"},
	})
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.CoverIntent
	}{
		{
			name: "title and artist",
			text: `Make a cover for 'Song Title' by Artist`,
			want: domain.CoverIntent{
				Params:        domain.CoverParams{Title: "Song Title", Artist: "Artist"},
				Resolution:    domain.Resolution1K,
				NumVariations: 1,
			},
		},
		{
			name: "style with custom clause",
			text: "Create a traditional Afghan cover with gold details",
			want: domain.CoverIntent{
				Params:        domain.CoverParams{Style: "traditional", Custom: "with gold details"},
				Resolution:    domain.Resolution1K,
				NumVariations: 1,
			},
		},
		{
			name: "style region and quoted title",
			text: `Generate modern Kabuli style cover for my new song "Watan"`,
			want: domain.CoverIntent{
				Params:        domain.CoverParams{Title: "Watan", Style: "modern", Regional: "kabuli"},
				Resolution:    domain.Resolution1K,
				NumVariations: 1,
			},
		},
		{
			name: "resolution and variations",
			text: `romantic cover titled "Laili" by Ahmad Zahir, 3 variations in 4K`,
			want: domain.CoverIntent{
				Params:        domain.CoverParams{Title: "Laili", Artist: "Ahmad Zahir", Style: "romantic"},
				Resolution:    domain.Resolution4K,
				NumVariations: 3,
			},
		},
		{
			name: "variations clamped",
			text: "10 versions of a lofi beat tape cover in 2K",
			want: domain.CoverIntent{
				Params:        domain.CoverParams{Genre: "lo-fi"},
				Resolution:    domain.Resolution2K,
				NumVariations: 4,
			},
		},
		{
			name: "keywords inside the title are ignored",
			text: `cover for "Modern Love" in jazz style with smoky lights`,
			want: domain.CoverIntent{
				Params:        domain.CoverParams{Title: "Modern Love", Genre: "jazz", Custom: "with smoky lights"},
				Resolution:    domain.Resolution1K,
				NumVariations: 1,
			},
		},
	}

	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParser_EmptyRequest(t *testing.T) {
	_, err := testParser().Parse("   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
