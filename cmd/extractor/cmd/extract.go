package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-transaction-extractor/cmd/extractor/config"
	"golang-transaction-extractor/internal/batch"
	"golang-transaction-extractor/internal/extractor"
	"golang-transaction-extractor/internal/recognizer"
	"golang-transaction-extractor/internal/reporter"
	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// newRecognizer builds the recognizer used by extract. Tests swap it for a
// registry that needs no OCR engine.
var newRecognizer = func(cfg *recognizer.Config, log logger.Logger) (batch.Recognizer, error) {
	return recognizer.NewDefaultRegistry(cfg, log)
}

var (
	settings     = config.DefaultSettings()
	showProgress bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract transactions from a directory of screenshots",
	Long: `Extract recognizes the text of every screenshot in the input directory,
segments it into transactions and exports the records with a data summary
and a completeness report.

Inputs are processed in file-name order. Supported inputs are images
(.png .jpg .jpeg .bmp .tiff .webp), PDFs with a text layer and .json
fragment dumps.

Examples:
  # Default directories, xlsx output
  extractor extract

  # Explicit paths with a progress bar
  extractor extract --input shots --output output/july.xlsx --progress

  # Parallel recognition, JSON report on stdout
  extractor extract -i shots -o - --format json --workers 4

  # Custom rule table and statement year
  extractor extract -i shots --rules my-rules.yaml --year 2023`,

	PreRunE: validateExtractFlags,
	RunE:    runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&settings.Input, "input", "i", config.DefaultInputDir, "input directory with screenshots")
	extractCmd.Flags().StringVarP(&settings.Output, "output", "o", config.DefaultOutputFile, "output file path, - for stdout")
	extractCmd.Flags().StringVarP(&settings.Format, "format", "f", "", "output format: xlsx, csv, json, console (default: from output extension)")

	extractCmd.Flags().IntVarP(&settings.Workers, "workers", "w", 1, "number of images processed concurrently")
	extractCmd.Flags().IntVar(&settings.Year, "year", 0, "year stamped on record dates (default from rule table)")
	extractCmd.Flags().Float64Var(&settings.MinConfidence, "min-confidence", -1, "drop fragments below this recognition confidence (default from rule table)")

	extractCmd.Flags().StringSliceVar(&settings.Languages, "languages", settings.Languages, "tesseract languages")
	extractCmd.Flags().StringVar(&settings.TessdataPrefix, "tessdata", "", "tesseract data directory")
	extractCmd.Flags().BoolVar(&settings.NoPreprocess, "no-preprocess", false, "recognize images without preparation")

	extractCmd.Flags().BoolVar(&settings.NoColor, "no-color", false, "disable coloured console output")
	extractCmd.Flags().IntVar(&settings.MaxConsoleRows, "max-rows", 0, "records shown in the console report")
	extractCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar")

	for _, name := range []string{
		"input", "output", "format", "workers", "year", "min-confidence",
		"languages", "tessdata", "no-preprocess", "no-color", "max-rows", "progress",
	} {
		viper.BindPFlag(name, extractCmd.Flags().Lookup(name))
	}
}

func validateExtractFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	settings = config.Settings{
		Input:          viper.GetString("input"),
		Output:         viper.GetString("output"),
		Format:         viper.GetString("format"),
		RulesFile:      viper.GetString("rules"),
		Year:           viper.GetInt("year"),
		MinConfidence:  viper.GetFloat64("min-confidence"),
		Workers:        viper.GetInt("workers"),
		Languages:      viper.GetStringSlice("languages"),
		TessdataPrefix: viper.GetString("tessdata"),
		NoPreprocess:   viper.GetBool("no-preprocess"),
		NoColor:        viper.GetBool("no-color"),
		MaxConsoleRows: viper.GetInt("max-rows"),
	}
	showProgress = viper.GetBool("progress")

	return config.ValidateSettings(settings)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeExtract(ctx, settings, showProgress, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// executeExtract runs a whole extraction: rules, pipeline, batch, export
func executeExtract(ctx context.Context, s config.Settings, progress bool, stdout, stderr io.Writer) error {
	log := logger.GetGlobalLogger().WithComponent("cli")

	r, err := config.LoadRules(s.RulesFile)
	if err != nil {
		return err
	}
	extractorConfig, err := config.CreateExtractorConfig(r, s)
	if err != nil {
		return err
	}
	batchConfig, err := config.CreateBatchConfig(s)
	if err != nil {
		return err
	}
	recognizerConfig, err := config.CreateRecognizerConfig(s)
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(s)
	if err != nil {
		return err
	}

	pipeline, err := extractor.NewPipeline(r, extractorConfig, log)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "pipeline", s.RulesFile, err)
	}
	rec, err := newRecognizer(recognizerConfig, log)
	if err != nil {
		return err
	}
	orchestrator, err := batch.NewOrchestrator(rec, pipeline, batchConfig, log)
	if err != nil {
		return err
	}

	if progress {
		// callbacks are serialized by the orchestrator; the bar is created
		// once the image count is known
		var bar *progressbar.ProgressBar
		orchestrator.AddProgressCallback(func(p *batch.Progress) {
			if bar == nil {
				bar = newProgressBar(stderr, p.TotalImages)
			}
			bar.Describe(fmt.Sprintf("%-24s", p.CurrentImage))
			bar.Set(p.Processed)
		})
	}

	log.WithFields(logger.Fields{
		"input":   s.Input,
		"output":  s.Output,
		"format":  reportConfig.Format,
		"workers": batchConfig.Workers,
		"year":    extractorConfig.Year,
	}).Info("Starting extraction")

	result, runErr := orchestrator.Run(ctx, s.Input)
	if runErr != nil && (result == nil || len(result.Records) == 0) {
		return runErr
	}

	if viper.GetBool("verbose") && len(result.Failures) > 0 {
		fmt.Fprintf(stderr, "%s\n", errors.FormatImageFailuresForUser(result.Failures))
	}

	if len(result.Records) == 0 {
		return errors.ExtractionError(errors.CodeNoTransactions, s.Input, nil).
			WithSuggestion("check that the screenshots are sharp and contain transaction lists")
	}

	if runErr != nil {
		log.WithError(runErr).Warn("Exporting partial results")
	}

	srg, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}
	err = logger.TimedOperation("export", log, func() error {
		if config.WritesToStdout(s.Output, reportConfig.Format) {
			return srg.GenerateReportSafely(result, stdout)
		}
		return srg.WriteFile(result, s.Output)
	})
	if err != nil {
		return err
	}

	printCompletion(stderr, result, s, reportConfig.Format)
	return runErr
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Recognizing screenshots...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

func printCompletion(w io.Writer, result *batch.Result, s config.Settings, format reporter.OutputFormat) {
	fmt.Fprintf(w, "Extracted %d transactions from %d images (%d failed, %d without transactions).\n",
		result.Stats.TotalTransactions, result.Stats.TotalImages, result.Stats.Failed, result.Stats.NoTransactions)
	if !config.WritesToStdout(s.Output, format) {
		fmt.Fprintf(w, "Results saved to: %s\n", s.Output)
	}
	if result.Quality != nil && !result.Quality.IsEmpty() {
		fmt.Fprintf(w, "Data quality: %.1f%%\n", result.Quality.Overall)
	}
	if result.Errors != nil {
		fmt.Fprintf(w, "Failed images by category: %s\n", result.Errors.Breakdown())
		if result.Errors.HasCategory(errors.CategoryRecognition) {
			fmt.Fprintf(w, "Hint: recognition failures usually mean missing tesseract language data (see --languages and --tessdata)\n")
		}
	}
}
