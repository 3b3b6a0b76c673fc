package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// NewLibraryCommand manages the artist and style reference collections.
func NewLibraryCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage reference images grouped by artist and style",
		Long: "The library keeps reference images under <library.path>/{artists,styles}/<name>.\n" +
			"Use a collection in a generation with --artist-ref or --style-ref.",
	}

	cmd.AddCommand(newLibraryListCommand(container))
	cmd.AddCommand(newLibraryShowCommand(container))
	cmd.AddCommand(newLibraryAddCommand(container))
	cmd.AddCommand(newLibraryRemoveCommand(container))
	cmd.AddCommand(newLibrarySearchCommand(container))
	cmd.AddCommand(newLibraryPathCommand(container))

	return cmd
}

func newLibraryListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:       "list [artists|styles|all]",
		Short:     "List collections and their reference counts",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"artists", "styles", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := libraryOf(container)
			if err != nil {
				return err
			}
			kind, err := domain.ParseCollectionKind(firstArg(args))
			if err != nil {
				return err
			}
			collections, err := lib.Collections(kind)
			if err != nil {
				return err
			}
			displayCollections(cmd.OutOrStdout(), collections, kind, false)
			return nil
		},
	}
}

func newLibraryShowCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show <artist|style> <name>",
		Short: "Show the references and metadata of one collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := libraryOf(container)
			if err != nil {
				return err
			}
			kind, err := collectionKindArg(args[0])
			if err != nil {
				return err
			}
			refs, err := lib.References(kind, args[1])
			if err != nil {
				return err
			}
			meta, err := lib.Metadata(kind, args[1])
			if err != nil {
				return err
			}
			displayCollection(cmd.OutOrStdout(), meta, refs)
			return nil
		},
	}
}

func newLibraryAddCommand(container *app.Container) *cobra.Command {
	var opts domain.AddReference

	cmd := &cobra.Command{
		Use:   "add <artist|style> <name> <image>...",
		Short: "Add reference images to a collection",
		Example: "  afcover library add artist \"Ahmad Zahir\" ~/refs/zahir-1975.jpg\n" +
			"  afcover library add style herati-miniature scans/*.png --tag miniature --move",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := libraryOf(container)
			if err != nil {
				return err
			}
			kind, err := collectionKindArg(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var failed []error
			for _, image := range args[2:] {
				stored, err := lib.Add(kind, args[1], image, opts)
				if err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", image, err))
					continue
				}
				fmt.Fprintf(out, "Added %s\n", stored)
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().BoolVar(&opts.Move, "move", false, "Move the files instead of copying them")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "Notes stored with each image")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "Tag stored with each image (repeatable)")
	return cmd
}

func newLibraryRemoveCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>...",
		Short: "Remove reference images from the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := libraryOf(container)
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := lib.Remove(path); err != nil {
					return fmt.Errorf("remove %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", path)
			}
			return nil
		},
	}
}

func newLibrarySearchCommand(container *app.Container) *cobra.Command {
	var (
		kindFlag     string
		skipMetadata bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search collection names, file names, notes and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := libraryOf(container)
			if err != nil {
				return err
			}
			kind, err := domain.ParseCollectionKind(kindFlag)
			if err != nil {
				return err
			}
			results, err := lib.Search(args[0], kind, !skipMetadata)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Search results for %q (%d matches):\n", args[0], countReferences(results))
			displayCollections(out, results, kind, true)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "type", "t", "all", "Collections to search: artists, styles or all")
	cmd.Flags().BoolVarP(&skipMetadata, "skip-metadata", "s", false, "Only match collection and file names")
	return cmd
}

func newLibraryPathCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the library location",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := libraryOf(container)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), lib.Root())
			return nil
		},
	}
}

func libraryOf(container *app.Container) (ports.ReferenceLibrary, error) {
	if container.Library == nil {
		return nil, errors.New(ErrLibraryUnavailable)
	}
	return container.Library, nil
}

// collectionKindArg parses a required artist/style argument; "all" is not accepted.
func collectionKindArg(raw string) (domain.CollectionKind, error) {
	kind, err := domain.ParseCollectionKind(raw)
	if err != nil {
		return "", err
	}
	if kind == "" {
		return "", domain.NewValidationError("collection type", "want artist or style")
	}
	return kind, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func countReferences(collections []domain.Collection) int {
	n := 0
	for _, c := range collections {
		n += len(c.References)
	}
	return n
}

// displayCollections groups collections by kind. With files set every
// reference path is listed under its collection.
func displayCollections(out io.Writer, collections []domain.Collection, kind domain.CollectionKind, files bool) {
	kinds := domain.CollectionKinds
	if kind != "" {
		kinds = []domain.CollectionKind{kind}
	}
	for _, k := range kinds {
		var group []domain.Collection
		for _, c := range collections {
			if c.Kind == k {
				group = append(group, c)
			}
		}
		title := capitalize(string(k))
		if len(group) == 0 {
			fmt.Fprintf(out, "%s: none\n", title)
			continue
		}
		fmt.Fprintf(out, "%s (%d):\n", title, len(group))
		for _, c := range group {
			fmt.Fprintf(out, "  %-24s %d references\n", c.Name, len(c.References))
			if files {
				for i, ref := range c.References {
					fmt.Fprintf(out, "    %d. %s\n", i+1, ref)
				}
			}
		}
	}
}

func displayCollection(out io.Writer, meta domain.CollectionMeta, refs []string) {
	fmt.Fprintf(out, "%s collection %q (%d references)\n", capitalize(meta.Kind.Singular()), meta.Name, len(refs))
	if len(refs) == 0 {
		return
	}
	for _, ref := range refs {
		fmt.Fprintf(out, "  %s\n", ref)
		info, ok := meta.References[filepath.Base(ref)]
		if !ok {
			continue
		}
		if !info.AddedAt.IsZero() {
			fmt.Fprintf(out, "      added  %s\n", info.AddedAt.Local().Format(TimestampFormat))
		}
		if info.Notes != "" {
			fmt.Fprintf(out, "      notes  %s\n", info.Notes)
		}
		if len(info.Tags) > 0 {
			tags := append([]string(nil), info.Tags...)
			sort.Strings(tags)
			fmt.Fprintf(out, "      tags   %s\n", strings.Join(tags, ", "))
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
