package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-transaction-extractor/cmd/extractor/config"
)

// rulesCmd prints the active rule table
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the active rule table",
	Long: `Rules prints the rule table the extractor would use, as YAML. Without
--rules this is the embedded default table; with it, the file merged on top
of the defaults. The output is a valid starting point for a custom table.

Examples:
  extractor rules > my-rules.yaml
  extractor rules --rules my-rules.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := config.LoadRules(viper.GetString("rules"))
		if err != nil {
			return err
		}
		return r.Write(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
