// Package main is the entry point for melodygen CLI
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/james-see/melodygen/pkg/api"
	"github.com/james-see/melodygen/pkg/composer"
	"github.com/james-see/melodygen/pkg/config"
	"github.com/james-see/melodygen/pkg/export"
	"github.com/james-see/melodygen/pkg/harmony"
	"github.com/james-see/melodygen/pkg/melody"
	"github.com/james-see/melodygen/pkg/rhythm"
	"github.com/james-see/melodygen/pkg/theory"
	"github.com/james-see/melodygen/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	verbose    bool
	outputFile string
	formatName string
	serverPort int

	gen       = composer.DefaultParams()
	seed      uint64
	cfg       *config.Config
	generator *composer.Composer
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "melodygen",
	Short: "Generate melodies over harmonic-rhythm driven chord progressions",
	Long: `melodygen composes a melody and a chord track from a key, a mode,
a harmonic rhythm and a handful of shaping parameters.

Output goes to MIDI, JSON, YAML, msgpack or a bar-by-bar text transcript.

Examples:
  melodygen generate --root Eb --mode dorian --bars 8 -o piece.mid
  melodygen generate --rhythm bossa_nova --contour arch --seed 42
  melodygen presets
  melodygen inspect piece.mid
  melodygen tui
  melodygen serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a composition",
	Long: `Generates a composition. Flags override the defaults from the config file.
Without -o the transcript is printed; -o picks the format from the extension.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List harmonic rhythm presets",
	Args:  cobra.NoArgs,
	RunE:  runPresets,
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List accepted roots, modes, contours, interval styles and chord strategies",
	Args:  cobra.NoArgs,
	RunE:  runOptions,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarize a MIDI file or print a saved composition",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cfg.Path())
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.melodygen/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log generation details")

	// generate command
	f := generateCmd.Flags()
	f.StringVarP(&gen.Root, "root", "r", gen.Root, "Key root (C, C#, Db, ...)")
	f.StringVarP(&gen.Mode, "mode", "m", gen.Mode, "Mode (see options)")
	f.IntVarP(&gen.Bars, "bars", "b", gen.Bars, "Number of bars")
	f.IntVar(&gen.BeatsPerBar, "beats-per-bar", gen.BeatsPerBar, "Beats per bar")
	f.Float64Var(&gen.BPM, "bpm", gen.BPM, "Tempo in beats per minute")
	f.StringVar(&gen.HarmonicRhythm, "rhythm", gen.HarmonicRhythm, "Harmonic rhythm preset (see presets)")
	f.StringVar(&gen.ChordStrategy, "strategy", gen.ChordStrategy, "Chord strategy")
	f.StringVar(&gen.Contour, "contour", gen.Contour, "Melodic contour")
	f.StringVar(&gen.IntervalStyle, "intervals", gen.IntervalStyle, "Interval style")
	f.IntVar(&gen.RegisterLow, "register-low", gen.RegisterLow, "Lowest scale index of the melody, -1 for the default register")
	f.IntVar(&gen.RegisterHigh, "register-high", gen.RegisterHigh, "Highest scale index of the melody, -1 for the default register")
	f.IntVar(&gen.PhraseBars, "phrase-bars", gen.PhraseBars, "Bars per phrase")
	f.IntVar(&gen.MotifLength, "motif-length", gen.MotifLength, "Notes per motif, 0 disables motifs")
	f.Float64Var(&gen.MotifStartProb, "motif-start", gen.MotifStartProb, "Probability of capturing a motif")
	f.Float64Var(&gen.MotifRepeatProb, "motif-repeat", gen.MotifRepeatProb, "Probability of replaying the motif")
	f.IntVar(&gen.ChordVolume, "chord-volume", gen.ChordVolume, "Chord track volume 0-100")
	f.StringToIntVar(&gen.RhythmWeights, "weight", nil, "Rhythm value weight 0-100, e.g. note-quarter=80")
	f.Uint64Var(&seed, "seed", 0, "Random seed for a reproducible piece")
	f.StringVarP(&outputFile, "output", "o", "", "Output file path (.mid, .json, .yaml, .msgpack, .txt)")
	f.StringVarP(&formatName, "format", "f", "", "Output format, overrides the file extension")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	// Add commands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup configures logging and loads the config file before any command.
func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	presets, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to register presets from %s: %w", cfg.Path(), err)
	}
	generator = composer.New(presets, slog.Default())
	return nil
}

// params overlays the flags given on the command line onto the config defaults.
func params(cmd *cobra.Command) composer.Params {
	p := cfg.Defaults
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("root", func() {
		p.Root = gen.Root
		if !flags.Changed("register-low") {
			p.RegisterLow, p.RegisterHigh = -1, -1
		}
	})
	set("mode", func() {
		p.Mode = gen.Mode
		if !flags.Changed("register-low") {
			p.RegisterLow, p.RegisterHigh = -1, -1
		}
	})
	set("bars", func() { p.Bars = gen.Bars })
	set("beats-per-bar", func() { p.BeatsPerBar = gen.BeatsPerBar })
	set("bpm", func() { p.BPM = gen.BPM })
	set("rhythm", func() { p.HarmonicRhythm = gen.HarmonicRhythm })
	set("strategy", func() { p.ChordStrategy = gen.ChordStrategy })
	set("contour", func() { p.Contour = gen.Contour })
	set("intervals", func() { p.IntervalStyle = gen.IntervalStyle })
	set("register-low", func() { p.RegisterLow = gen.RegisterLow })
	set("register-high", func() { p.RegisterHigh = gen.RegisterHigh })
	set("phrase-bars", func() { p.PhraseBars = gen.PhraseBars })
	set("motif-length", func() { p.MotifLength = gen.MotifLength })
	set("motif-start", func() { p.MotifStartProb = gen.MotifStartProb })
	set("motif-repeat", func() { p.MotifRepeatProb = gen.MotifRepeatProb })
	set("chord-volume", func() { p.ChordVolume = gen.ChordVolume })
	set("weight", func() { p.RhythmWeights = gen.RhythmWeights })
	set("seed", func() { p.Seed = &seed })
	return p
}

func runGenerate(cmd *cobra.Command, args []string) error {
	comp, err := generator.Compose(params(cmd))
	if err != nil {
		return err
	}
	for _, w := range comp.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	format := export.FormatText
	if outputFile != "" {
		format = export.DetectFormat(outputFile)
		if format == export.FormatUnknown {
			format = export.ParseFormat(cfg.Output.Format)
		}
	}
	if formatName != "" {
		format = export.ParseFormat(formatName)
	}
	if format == export.FormatUnknown {
		return fmt.Errorf("unsupported output format: %s", formatName)
	}

	if outputFile == "" || outputFile == "-" {
		return export.Write(os.Stdout, comp, format)
	}

	data, err := export.Encode(comp, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("Generated %s (%d bars, %d chords, %d melody events, seed %d)\n",
		outputFile, comp.Params.Bars, len(comp.Chords), len(comp.Melody), comp.Seed)
	return nil
}

func runPresets(cmd *cobra.Command, args []string) error {
	for _, p := range generator.Presets().All() {
		fmt.Printf("%-16s %-13s %s\n", p.Name, p.Kind, p.Description)
	}
	return nil
}

func runOptions(cmd *cobra.Command, args []string) error {
	contours := make([]string, 0)
	for _, c := range melody.Contours() {
		contours = append(contours, string(c))
	}
	styles := make([]string, 0)
	for _, s := range melody.IntervalStyles() {
		styles = append(styles, string(s))
	}

	fmt.Printf("Roots:           %s\n", strings.Join(theory.Roots(), ", "))
	fmt.Printf("Modes:           %s\n", strings.Join(theory.Modes(), ", "))
	fmt.Printf("Contours:        %s\n", strings.Join(contours, ", "))
	fmt.Printf("Interval styles: %s\n", strings.Join(styles, ", "))
	fmt.Println("Chord strategies:")
	for _, s := range harmony.Strategies() {
		fmt.Printf("  %-18s %s\n", s.Name, s.Description)
	}
	fmt.Printf("Rhythm weights:  %s\n", strings.Join(rhythm.Keys(), ", "))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	format := export.DetectFormatFromContent(data)
	if format == export.FormatUnknown {
		format = export.DetectFormat(args[0])
	}

	if format == export.FormatMIDI {
		summary, err := export.Inspect(data)
		if err != nil {
			return err
		}
		fmt.Printf("Tempo:  %.1f BPM\n", summary.Tempo)
		fmt.Printf("Meter:  %d beats per bar\n", summary.BeatsPerBar)
		fmt.Printf("Length: %.2f bars, %.1fs\n", summary.Bars(), summary.DurationSec())
		for i, t := range summary.Tracks {
			fmt.Printf("Track %d: %-8s channel %2d  %4d notes", i, t.Name, t.Channel+1, t.Notes)
			if t.Notes > 0 {
				fmt.Printf("  keys %d-%d", t.LowestKey, t.HighKey)
			}
			fmt.Println()
		}
		return nil
	}

	comp, err := export.Decode(data, format)
	if err != nil {
		return err
	}
	fmt.Printf("Composition %s (seed %d)\n\n", comp.ID, comp.Seed)
	return comp.WriteTranscript(os.Stdout)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", cfg.Path())
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(composer.NewStudio(generator), cfg.Defaults, cfg.Output.Dir)
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", serverPort)
	return api.StartServer(serverPort, composer.NewStudio(generator), api.Options{
		Defaults: &cfg.Defaults,
		Logger:   slog.Default(),
	})
}
