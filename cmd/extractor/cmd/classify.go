package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-transaction-extractor/cmd/extractor/config"
	"golang-transaction-extractor/internal/classifier"
	"golang-transaction-extractor/pkg/errors"
)

// classifyCmd classifies a single title
var classifyCmd = &cobra.Command{
	Use:   "classify TITLE [SUBTITLE]",
	Short: "Classify a transaction title",
	Long: `Classify prints the transaction type the extractor would assign to a
title and optional sub-title. With --verbose every scoring category is listed.

Examples:
  extractor classify 平安人寿保险费
  extractor classify 美团外卖订单 餐饮美食 -v`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := config.LoadRules(viper.GetString("rules"))
		if err != nil {
			return err
		}
		c, err := classifier.NewFromRules(r)
		if err != nil {
			return errors.ConfigurationError(errors.CodeInvalidRules, "categories", err.Error(), err)
		}

		title := args[0]
		subTitle := ""
		if len(args) > 1 {
			subTitle = args[1]
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, c.Classify(title, subTitle))

		if viper.GetBool("verbose") {
			for _, s := range c.Scores(title, subTitle) {
				fmt.Fprintf(out, "  %-8s score=%d keywords=%d patterns=%d priority=%d\n",
					s.Category, s.Score, s.Keywords, s.Patterns, s.Priority)
			}
			if strings.TrimSpace(title+subTitle) == "" {
				fmt.Fprintln(out, "  (empty input)")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
