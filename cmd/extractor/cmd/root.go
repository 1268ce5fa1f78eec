package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-transaction-extractor/pkg/logger"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string
	version  = "dev"
	commit   = "unknown"
	date     = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "extractor",
	Short: "Payment screenshot transaction extractor",
	Long: `Extractor reads mobile-payment and banking app screenshots, recognizes
their text and turns it into structured transaction records exported to a
spreadsheet.

Examples:
  extractor extract --input input_images --output output/smart_transactions.xlsx
  extractor extract -i shots -o report.json --workers 4 --progress
  extractor classify 平安人寿保险费
  extractor rules > my-rules.yaml
  extractor version`,
	Version:       getVersionString(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "write JSON logs to this file instead of stderr")
	rootCmd.PersistentFlags().String("rules", "", "rule table overriding the embedded defaults")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("rules", rootCmd.PersistentFlags().Lookup("rules"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	viper.SetEnvPrefix("EXTRACTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(3)
		}
	}

	if err := setupLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %s\n", err)
		os.Exit(3)
	}

	if cfgFile != "" {
		logger.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
	}
}

func setupLogger() error {
	config := loggerConfig(viper.GetBool("verbose"), viper.GetString("log-level"), viper.GetString("log-file"))

	log, err := logger.NewLogger(config)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)
	return nil
}

// loggerConfig picks the logger settings. A log file switches to the JSON
// production setup; verbose always means debug level.
func loggerConfig(verbose bool, level, file string) *logger.Config {
	config := logger.DefaultConfig()
	config.Level = logger.Level(level)
	if verbose {
		config = logger.DebugConfig()
	}

	if file != "" {
		production := logger.ProductionConfig()
		production.File = file
		production.Level = config.Level
		production.CallerInfo = config.CallerInfo
		config = production
	}
	return config
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
