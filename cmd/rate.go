package cmd

import (
	"fmt"
	"time"

	"github.com/sanisideup/fxrates/pkg/country"
	"github.com/sanisideup/fxrates/pkg/models"
	"github.com/sanisideup/fxrates/pkg/pricing"
	"github.com/sanisideup/fxrates/pkg/refresh"
	"github.com/spf13/cobra"
)

var (
	rateAmount  string
	rateMargin  float64
	rateTimeout time.Duration
)

// rateOutput is the JSON shape of a one-off quote
type rateOutput struct {
	From         string             `json:"from"`
	To           string             `json:"to"`
	SellCurrency string             `json:"sellCurrency"`
	BuyCurrency  string             `json:"buyCurrency"`
	Amount       float64            `json:"amount"`
	ExchangeRate float64            `json:"exchangeRate"`
	OFXRate      float64            `json:"ofxRate"`
	Margin       float64            `json:"margin"`
	TrueAmount   string             `json:"trueAmount"`
	OFXAmount    string             `json:"ofxAmount"`
	Source       *models.RateResult `json:"source"`
	FetchedAt    time.Time          `json:"fetchedAt"`
}

var rateCmd = &cobra.Command{
	Use:   "rate <from-country> <to-country>",
	Short: "Fetch a single quote for a country pair",
	Long: `Fetches the current retail rate once and prints the converted amount
at the true rate and at the marked-up OFX rate. No retries are made.

Examples:
  fxrates rate AU US
  fxrates rate AU GB --amount 250
  fxrates rate nz jp --amount 1000 --json
  fxrates rate AU US --timeout 3s`,
	Args: cobra.ExactArgs(2),
	RunE: runRate,
}

func init() {
	rootCmd.AddCommand(rateCmd)

	rateCmd.Flags().StringVarP(&rateAmount, "amount", "a", "1", "Amount to convert")
	rateCmd.Flags().Float64Var(&rateMargin, "margin", -1, "Markup margin (default from config)")
	rateCmd.Flags().DurationVar(&rateTimeout, "timeout", 0, "Request timeout (default from config)")
}

func runRate(cmd *cobra.Command, args []string) error {
	table := country.Default()

	from, to, err := resolvePair(table, args[0], args[1])
	if err != nil {
		return err
	}

	margin := cfg.Margin
	if cmd.Flags().Changed("margin") {
		margin = rateMargin
	}
	amount := refresh.ParseAmount(rateAmount)

	if cmd.Flags().Changed("timeout") {
		if rateTimeout <= 0 {
			return newValidationError("invalid --timeout %s: must be positive", rateTimeout)
		}
		rateClient.SetTimeout(rateTimeout)
	}

	query := models.RateQuery{
		SellCurrency: from.Currency,
		BuyCurrency:  to.Currency,
	}

	result, err := rateClient.FetchRate(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("failed to fetch %s rate: %w", query.Pair(), err)
	}

	quote := pricing.NewQuote(amount, result.RetailRate, margin)

	if jsonOutput {
		return printJSON(rateOutput{
			From:         from.Code,
			To:           to.Code,
			SellCurrency: from.Currency,
			BuyCurrency:  to.Currency,
			Amount:       amount,
			ExchangeRate: quote.ExchangeRate,
			OFXRate:      quote.OFXRate,
			Margin:       margin,
			TrueAmount:   quote.TrueAmountText(),
			OFXAmount:    quote.OFXAmountText(),
			Source:       result,
			FetchedAt:    time.Now().UTC(),
		})
	}

	fmt.Printf("%s (%s) -> %s (%s)\n", from.Name, from.Currency, to.Name, to.Currency)
	fmt.Printf("Rate:        %s\n", pricing.FormatRate(quote.ExchangeRate))
	fmt.Printf("OFX rate:    %s\n", pricing.FormatRate(quote.OFXRate))
	fmt.Printf("Amount:      %s %s\n", pricing.FormatAmount(amount), from.Currency)
	fmt.Printf("True amount: %s %s\n", quote.TrueAmountText(), to.Currency)
	fmt.Printf("OFX amount:  %s %s\n", quote.OFXAmountText(), to.Currency)
	if result.ValidUntil != "" {
		fmt.Printf("Valid until: %s\n", result.ValidUntil)
	}

	return nil
}

// resolvePair looks both country codes up, rejecting unknown ones
func resolvePair(table *country.Table, fromCode, toCode string) (country.Country, country.Country, error) {
	from, ok := table.Lookup(fromCode)
	if !ok {
		return country.Country{}, country.Country{}, newValidationError("unknown country %q (see 'fxrates countries')", fromCode)
	}
	to, ok := table.Lookup(toCode)
	if !ok {
		return country.Country{}, country.Country{}, newValidationError("unknown country %q (see 'fxrates countries')", toCode)
	}
	return from, to, nil
}
