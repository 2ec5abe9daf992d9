package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/erg0nix/chatdesk/internal/models"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported models and their prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := newTable("MODEL", "INPUT $/1M", "OUTPUT $/1M", "")
			for _, name := range models.Supported() {
				rate, _ := models.RateFor(name)
				marker := ""
				if name == models.Default {
					marker = styleActive.Render("default")
				}
				t.Row(name, formatRate(rate.Input), formatRate(rate.Output), marker)
			}

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

func newPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price <model> <input-tokens> <output-tokens>",
		Short: "Compute the cost of a request",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputTokens, err := parseTokens(args[1])
			if err != nil {
				return err
			}
			outputTokens, err := parseTokens(args[2])
			if err != nil {
				return err
			}

			price, err := models.Price(args[0], inputTokens, outputTokens)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "$%.6f\n", price)
			return nil
		},
	}
}

func parseTokens(text string) (int, error) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("token count must be a non-negative integer, got %q", text)
	}
	return n, nil
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
