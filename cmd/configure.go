package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sanisideup/fxrates/pkg/client"
	"github.com/sanisideup/fxrates/pkg/config"
	"github.com/sanisideup/fxrates/pkg/country"
	"github.com/sanisideup/fxrates/pkg/models"
	"github.com/spf13/cobra"
)

var skipCheck bool

// configureCmd represents the configure command
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure the pricing service and refresh settings",
	Long: `Interactive setup wizard that writes ~/.fxrates/config.yaml.
Press Enter to keep the value shown in brackets.

Every setting can also be overridden with an FXRATES_* environment variable,
for example FXRATES_REFRESH_RATE_MS=5000.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Save without checking the pricing service")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	// Start from the current file, falling back to defaults
	current, err := loadForConfigure()
	if err != nil {
		return err
	}

	fmt.Println("=== fxrates Configuration ===")
	fmt.Println()

	if current.APIBaseURL, err = promptString(reader, "Pricing service URL", current.APIBaseURL); err != nil {
		return err
	}
	if current.RefreshRateMS, err = promptInt(reader, "Refresh rate (ms)", current.RefreshRateMS); err != nil {
		return err
	}
	if current.MaxRetries, err = promptInt(reader, "Max retries", current.MaxRetries); err != nil {
		return err
	}
	if current.Margin, err = promptFloat(reader, "Margin", current.Margin); err != nil {
		return err
	}
	if current.DefaultFrom, err = promptCountry(reader, "Default from country", current.DefaultFrom); err != nil {
		return err
	}
	if current.DefaultTo, err = promptCountry(reader, "Default to country", current.DefaultTo); err != nil {
		return err
	}

	if err := current.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Check the pricing service before saving
	if !skipCheck {
		fmt.Println()
		fmt.Println("Checking pricing service...")

		table := country.Default()
		query := models.RateQuery{
			SellCurrency: table.GetCurrencyCode(current.DefaultFrom),
			BuyCurrency:  table.GetCurrencyCode(current.DefaultTo),
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		result, err := client.New(current).FetchRate(ctx, query)
		if err != nil {
			return fmt.Errorf("pricing service check failed (use --skip-check to save anyway): %w", err)
		}
		fmt.Printf("✓ %s rate is %v\n", query.Pair(), result.RetailRate)
	}

	path := cfgFile
	if path == "" {
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	if err := current.SaveToPath(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Configuration saved to: %s\n", path)
	fmt.Println()
	fmt.Println("You're all set! Try running 'fxrates watch'.")

	return nil
}

func loadForConfigure() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromPath(cfgFile)
	}
	return config.Load()
}

func promptString(reader *bufio.Reader, label, current string) (string, error) {
	fmt.Printf("%s [%s]: ", label, current)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return current, nil
	}
	return input, nil
}

func promptInt(reader *bufio.Reader, label string, current int) (int, error) {
	input, err := promptString(reader, label, strconv.Itoa(current))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, newValidationError("invalid %s %q: must be a whole number", strings.ToLower(label), input)
	}
	return n, nil
}

func promptFloat(reader *bufio.Reader, label string, current float64) (float64, error) {
	input, err := promptString(reader, label, strconv.FormatFloat(current, 'f', -1, 64))
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, newValidationError("invalid %s %q: must be a number", strings.ToLower(label), input)
	}
	return f, nil
}

func promptCountry(reader *bufio.Reader, label, current string) (string, error) {
	input, err := promptString(reader, label, current)
	if err != nil {
		return "", err
	}
	code := strings.ToUpper(input)
	if !country.Default().Has(code) {
		return "", newValidationError("unknown country %q (see 'fxrates countries')", input)
	}
	return code, nil
}
