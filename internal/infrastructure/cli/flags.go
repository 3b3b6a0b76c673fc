package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/pkg/filesystem"
	"github.com/doeshing/afcover/internal/ports"
)

// requestFlags are the request and output knobs shared by generate, ask and batch.
type requestFlags struct {
	resolution string
	variations int
	format     string
	seed       int64
	references []string
	artistRefs []string
	styleRefs  []string
	webSearch  bool
	allowExtra bool
	outputDir  string
	maxWait    time.Duration
	interval   time.Duration
	json       bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.resolution, "resolution", "r", "", "Resolution: 1K, 2K or 4K (default from config)")
	flags.IntVarP(&f.variations, "variations", "n", 0, "Number of images, clamped to 1-4 (default from config)")
	flags.StringVar(&f.format, "format", "", "Output format: png, jpeg or webp (default from config)")
	flags.Int64Var(&f.seed, "seed", 0, "Seed for reproducible results")
	flags.StringSliceVar(&f.references, "ref", nil, "Reference image path or URL (repeatable, switches to edit mode)")
	flags.StringSliceVar(&f.artistRefs, "artist-ref", nil, "Use every image of this artist collection as a reference (repeatable)")
	flags.StringSliceVar(&f.styleRefs, "style-ref", nil, "Use every image of this style collection as a reference (repeatable)")
	flags.BoolVar(&f.webSearch, "web-search", false, "Let the model use web search")
	flags.BoolVar(&f.allowExtra, "allow-extra-images", false, "Allow prompts to request more images than --variations")
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for downloaded images (default from config)")
	flags.DurationVar(&f.maxWait, "max-wait", 0, "Give up polling after this long (default from config)")
	flags.DurationVar(&f.interval, "poll-interval", 0, "Delay between status checks (default from config)")
	flags.BoolVar(&f.json, "json", false, "Print the manifest as JSON")
}

// options merges flags over the configured generation defaults. Library
// collections named by --artist-ref and --style-ref follow the --ref images.
func (f *requestFlags) options(cmd *cobra.Command, cfg domain.Config, lib ports.ReferenceLibrary) (domain.RequestOptions, error) {
	refs, err := f.referenceImages(lib)
	if err != nil {
		return domain.RequestOptions{}, err
	}
	opts := domain.RequestOptions{
		Resolution:       cfg.Generation.Resolution,
		NumVariations:    cfg.Generation.NumVariations,
		OutputFormat:     cfg.Generation.OutputFormat,
		ReferenceImages:  refs,
		AllowExtraImages: f.allowExtra || !cfg.Generation.LimitGenerations,
		EnableWebSearch:  f.webSearch,
	}
	if f.resolution != "" {
		opts.Resolution = f.resolution
	}
	if cmd.Flags().Changed("variations") {
		opts.NumVariations = f.variations
	}
	if f.format != "" {
		opts.OutputFormat = f.format
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		opts.Seed = &seed
	}
	return opts, nil
}

func (f *requestFlags) referenceImages(lib ports.ReferenceLibrary) ([]string, error) {
	refs := append([]string(nil), f.references...)
	lookups := []struct {
		kind  domain.CollectionKind
		names []string
	}{
		{domain.CollectionArtists, f.artistRefs},
		{domain.CollectionStyles, f.styleRefs},
	}
	for _, l := range lookups {
		for _, name := range l.names {
			if lib == nil {
				return nil, domain.NewValidationError(l.kind.Singular()+"-ref", "no reference library configured")
			}
			found, err := lib.References(l.kind, name)
			if err != nil {
				if errors.Is(err, domain.ErrCollectionNotFound) {
					return nil, domain.NewValidationError(l.kind.Singular()+"-ref",
						fmt.Sprintf("no %s collection %q (see 'afcover library list')", l.kind.Singular(), name))
				}
				return nil, err
			}
			if len(found) == 0 {
				return nil, domain.NewValidationError(l.kind.Singular()+"-ref",
					fmt.Sprintf("%s collection %q has no reference images", l.kind.Singular(), name))
			}
			refs = append(refs, found...)
		}
	}
	return refs, nil
}

func (f *requestFlags) outputDirectory(cfg domain.Config) string {
	if f.outputDir != "" {
		return filesystem.ExpandPath(f.outputDir)
	}
	return cfg.Generation.OutputDir
}

// pollSettings overlays --max-wait and --poll-interval on the configured
// polling settings and applies the same interval bound the config validator does.
func (f *requestFlags) pollSettings(cfg domain.Config) (domain.PollSettings, error) {
	settings := cfg.Polling.Settings()
	if f.maxWait > 0 {
		settings.MaxWait = f.maxWait
	}
	if f.interval > 0 {
		settings.Interval = f.interval
	}
	if settings.Interval > settings.MaxWait {
		return domain.PollSettings{}, domain.NewValidationError("poll-interval",
			fmt.Sprintf("%s exceeds max wait %s", settings.Interval, settings.MaxWait))
	}
	return settings, nil
}
