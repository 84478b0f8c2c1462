package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ZacxDev/spritemosaic/internal/config"
	"github.com/ZacxDev/spritemosaic/internal/logging"
	"github.com/ZacxDev/spritemosaic/pkg/spritemosaic"
)

var (
	rootCmd = &cobra.Command{
		Use:   "spritemosaic",
		Short: "Render images, GIFs and videos as sprite mosaics",
		Long: `spritemosaic redraws media with tiles taken from a sprite sheet. Every cell of
the resized input is replaced by the tile whose brightness band matches it.

Examples:
  # Render a photo at 720px on its shorter side
  spritemosaic render -m photo.jpg

  # Render a video with the amber filter and equalized contrast
  spritemosaic render -m clip.mp4 -c -f amber -o out/clip.mp4

Environment:
  SPRITEMOSAIC_SCRATCH_DIR, SPRITEMOSAIC_OUTPUT_DIR, SPRITEMOSAIC_FILTERS,
  SPRITEMOSAIC_SPRITES, SPRITEMOSAIC_SEGMENT_SECONDS, SPRITEMOSAIC_WORKERS,
  SPRITEMOSAIC_PROFILE, SPRITEMOSAIC_LOG_LEVEL, SPRITEMOSAIC_LOG_FORMAT`,
		SilenceUsage: true,
	}

	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Render one image, GIF or video",
		Long: fmt.Sprintf(`Render the media file given with --media. The kind of media is detected from
its content, and the output defaults to a fixed name per kind inside the
output directory.

Supported video profiles:
%s
Example:
  spritemosaic render -m input.gif -r 480 -o output.gif`,
			formatSupportedProfiles()),
		RunE: runRender,
	}

	filtersCmd = &cobra.Command{
		Use:   "filters",
		Short: "List the colour filters in the filter table",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := config.LoadDefaults(cmd.Context())
			if err != nil {
				return err
			}
			path := defaults.FiltersPath
			if cmd.Flags().Changed("filters") {
				path, _ = cmd.Flags().GetString("filters")
			}

			names, err := spritemosaic.ListFilters(path)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
)

func runRender(cmd *cobra.Command, args []string) error {
	defaults, err := config.LoadDefaults(cmd.Context())
	if err != nil {
		return err
	}
	opts := defaults.JobOptions()

	flags := cmd.Flags()
	opts.MediaPath, _ = flags.GetString("media")
	opts.OutputPath, _ = flags.GetString("output")
	opts.Resolution, _ = flags.GetInt("resolution")
	opts.HighContrast, _ = flags.GetBool("contrast")
	opts.Filter, _ = flags.GetString("filter")
	opts.Verbose, _ = flags.GetBool("verbose")
	if flags.Changed("sprites") {
		opts.SpritesPath, _ = flags.GetString("sprites")
	}
	if flags.Changed("filters") {
		opts.FiltersPath, _ = flags.GetString("filters")
	}
	if flags.Changed("profile") {
		opts.Profile, _ = flags.GetString("profile")
	}
	if flags.Changed("workers") {
		opts.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("segment") {
		opts.Segment, _ = flags.GetFloat64("segment")
	}

	logger, err := logging.New(logging.Options{
		Level:   defaults.LogLevel,
		Format:  defaults.LogFormat,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return err
	}

	renderer := spritemosaic.New(logger)
	if !opts.Verbose && isatty.IsTerminal(os.Stderr.Fd()) {
		var bar *progressbar.ProgressBar
		renderer.OnProgress(func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total)
			}
			_ = bar.Set(done)
		})
		defer func() {
			if bar != nil {
				_ = bar.Finish()
			}
		}()
	}

	res, err := renderer.Run(opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s in %s\n", res.Kind, res.Output, res.Elapsed.Round(time.Millisecond))
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func formatSupportedProfiles() string {
	var sb strings.Builder
	for _, name := range spritemosaic.SupportedProfiles() {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	return sb.String()
}

func init() {
	renderCmd.Flags().StringP("media", "m", "", "Image, GIF or video to render")
	renderCmd.Flags().IntP("resolution", "r", config.DefaultResolution, "Size of the shorter output side in pixels")
	renderCmd.Flags().BoolP("contrast", "c", false, "Equalize the brightness histogram before rendering")
	renderCmd.Flags().StringP("filter", "f", "", "Colour filter from the filter table")
	renderCmd.Flags().StringP("output", "o", "", "Output path (default: a per-kind name in the output directory)")
	renderCmd.Flags().String("sprites", "", "Sprite sheet image (default: built-in dither ramp)")
	renderCmd.Flags().String("filters", config.DefaultFiltersPath, "Filter table (TOML)")
	renderCmd.Flags().String("profile", config.DefaultProfile,
		fmt.Sprintf("Video encode profile (%s)", strings.Join(spritemosaic.SupportedProfiles(), ", ")))
	renderCmd.Flags().Int("workers", 0, "Segments transcoded in parallel (default: CPUs - 1)")
	renderCmd.Flags().Float64("segment", config.DefaultSegment, "Video segment length in seconds")
	renderCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")

	renderCmd.MarkFlagRequired("media")

	filtersCmd.Flags().String("filters", config.DefaultFiltersPath, "Filter table (TOML)")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(filtersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
