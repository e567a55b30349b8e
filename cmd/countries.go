package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sanisideup/fxrates/pkg/country"
	"github.com/spf13/cobra"
)

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List the selectable countries and their currencies",
	Long: `Lists every country that can be used as a "from" or "to" selection,
in display order, with the currency it converts through.

Examples:
  fxrates countries
  fxrates countries --json`,
	Args: cobra.NoArgs,
	RunE: runCountries,
}

func init() {
	rootCmd.AddCommand(countriesCmd)
}

func runCountries(cmd *cobra.Command, args []string) error {
	countries := country.Default().ListCountries()

	if jsonOutput {
		return printJSON(countries)
	}

	// Create tab writer for aligned output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tCURRENCY\tNAME")
	for _, c := range countries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Code, c.Currency, c.Name)
	}
	return w.Flush()
}
