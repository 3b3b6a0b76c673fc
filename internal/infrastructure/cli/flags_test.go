package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/library"
)

func TestRequestFlags_PollSettings(t *testing.T) {
	cfg := domain.Config{Polling: domain.PollingSettings{IntervalSeconds: 5, MaxWaitSeconds: 60}}

	tests := []struct {
		name     string
		flags    requestFlags
		want     domain.PollSettings
		wantFail bool
	}{
		{name: "config values", want: domain.PollSettings{MaxWait: time.Minute, Interval: 5 * time.Second}},
		{name: "flags override", flags: requestFlags{maxWait: 10 * time.Minute, interval: 30 * time.Second},
			want: domain.PollSettings{MaxWait: 10 * time.Minute, Interval: 30 * time.Second}},
		{name: "interval equal to max wait", flags: requestFlags{interval: time.Minute},
			want: domain.PollSettings{MaxWait: time.Minute, Interval: time.Minute}},
		{name: "interval above flag max wait", flags: requestFlags{maxWait: 10 * time.Second, interval: 30 * time.Second}, wantFail: true},
		{name: "interval above configured max wait", flags: requestFlags{interval: 2 * time.Minute}, wantFail: true},
		{name: "max wait below configured interval", flags: requestFlags{maxWait: 2 * time.Second}, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.pollSettings(cfg)
			if tt.wantFail {
				require.Error(t, err)
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "poll-interval", verr.Field)
				assert.Equal(t, ExitValidation, ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestFlags_LibraryReferences(t *testing.T) {
	lib := library.NewFileLibrary(filepath.Join(t.TempDir(), "library"))
	src := t.TempDir()
	add := func(kind domain.CollectionKind, name, file string) string {
		path := filepath.Join(src, file)
		require.NoError(t, os.WriteFile(path, []byte(file), 0o644))
		stored, err := lib.Add(kind, name, path, domain.AddReference{})
		require.NoError(t, err)
		return stored
	}
	zahir1 := add(domain.CollectionArtists, "Ahmad Zahir", "z1.jpg")
	zahir2 := add(domain.CollectionArtists, "Ahmad Zahir", "z2.jpg")
	neon := add(domain.CollectionStyles, "neon", "n1.png")
	require.NoError(t, os.MkdirAll(filepath.Join(lib.Root(), "styles", "empty"), 0o755))

	f := requestFlags{references: []string{"https://cdn.example/ref.png"}, artistRefs: []string{"ahmad zahir"}, styleRefs: []string{"Neon"}}
	refs, err := f.referenceImages(lib)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example/ref.png", zahir1, zahir2, neon}, refs)

	tests := []struct {
		name  string
		flags requestFlags
	}{
		{name: "unknown artist", flags: requestFlags{artistRefs: []string{"nobody"}}},
		{name: "empty style", flags: requestFlags{styleRefs: []string{"empty"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.referenceImages(lib)
			require.Error(t, err)
			assert.Equal(t, ExitValidation, ExitCode(err))
		})
	}

	_, err = (&requestFlags{styleRefs: []string{"neon"}}).referenceImages(nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	refs, err = (&requestFlags{}).referenceImages(nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}
