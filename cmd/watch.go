package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sanisideup/fxrates/pkg/country"
	"github.com/sanisideup/fxrates/pkg/pricing"
	"github.com/sanisideup/fxrates/pkg/refresh"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	watchFrom        string
	watchTo          string
	watchAmount      string
	watchMargin      float64
	watchRefreshRate time.Duration
	watchMaxRetries  int
	noProgress       bool
)

const (
	progressSteps        = 1000
	defaultWatchInterval = 100 * time.Millisecond
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a live rate and converted amount",
	Long: `Shows the live rate for a country pair, refreshed on a fixed cadence,
with the amount converted at the true rate and at the OFX rate.
Failed refreshes are retried with increasing delays.

While running, type a command and press Enter:
  from <code>    change the sell-side country
  to <code>      change the buy-side country
  amount <n>     change the amount to convert
  retry          retry now after errors
  quit           stop watching

Examples:
  fxrates watch
  fxrates watch --from NZ --to GB --amount 500
  fxrates watch --refresh-rate 5s --max-retries 5
  fxrates watch --json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFrom, "from", "", "Sell-side country code (default from config)")
	watchCmd.Flags().StringVar(&watchTo, "to", "", "Buy-side country code (default from config)")
	watchCmd.Flags().StringVarP(&watchAmount, "amount", "a", "0", "Amount to convert")
	watchCmd.Flags().Float64Var(&watchMargin, "margin", 0, "Markup margin (default from config)")
	watchCmd.Flags().DurationVar(&watchRefreshRate, "refresh-rate", 0, "Refresh interval (default from config)")
	watchCmd.Flags().IntVar(&watchMaxRetries, "max-retries", 0, "Automatic retries before giving up (default from config)")
	watchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Print status lines instead of a progress bar")
}

func runWatch(cmd *cobra.Command, args []string) error {
	table := country.Default()

	opts, err := watchOptions(cmd, table)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := refresh.New(rateClient, opts)
	ctrl.Start()
	defer ctrl.Close()

	view := newWatchView(os.Stderr, !noProgress && !jsonOutput, jsonOutput)
	defer view.finish()

	if !jsonOutput {
		fmt.Fprintln(os.Stderr, "Commands: from <code>, to <code>, amount <n>, retry, quit")
	}

	lines := readLines(ctx, os.Stdin)
	updates := ctrl.Updates()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				// Keep watching without input
				lines = nil
				continue
			}
			in, err := parseIntent(line)
			if err != nil {
				view.message(err.Error())
				continue
			}
			if in.kind == intentQuit {
				return nil
			}
			if err := applyIntent(ctrl, table, in); err != nil {
				view.message(err.Error())
			}

		case _, ok := <-updates:
			if !ok {
				return nil
			}
			view.render(ctrl.Snapshot())
		}
	}
}

// watchOptions builds controller options from config and flags
func watchOptions(cmd *cobra.Command, table *country.Table) (refresh.Options, error) {
	opts := refresh.DefaultOptions()
	opts.RefreshRate = cfg.RefreshRate()
	opts.MaxRetries = cfg.MaxRetries
	opts.Margin = cfg.Margin
	opts.BackoffFactor = cfg.BackoffFactor
	opts.MaxBackoff = cfg.MaxBackoff()
	opts.FrameInterval = cfg.FrameInterval()
	opts.DefaultFrom = cfg.DefaultFrom
	opts.DefaultTo = cfg.DefaultTo
	opts.Countries = table
	opts.Logger = log.Named("refresh")

	flags := cmd.Flags()
	if flags.Changed("from") {
		opts.DefaultFrom = watchFrom
	}
	if flags.Changed("to") {
		opts.DefaultTo = watchTo
	}
	if flags.Changed("margin") {
		opts.Margin = watchMargin
	}
	if flags.Changed("refresh-rate") {
		if watchRefreshRate <= 0 {
			return opts, newValidationError("invalid --refresh-rate %s: must be positive", watchRefreshRate)
		}
		opts.RefreshRate = watchRefreshRate
	}
	if flags.Changed("max-retries") {
		if watchMaxRetries < 0 {
			return opts, newValidationError("invalid --max-retries %d: must not be negative", watchMaxRetries)
		}
		opts.MaxRetries = watchMaxRetries
	}
	opts.Amount = refresh.ParseAmount(watchAmount)

	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultWatchInterval
	}

	for _, code := range []string{opts.DefaultFrom, opts.DefaultTo} {
		if !table.Has(code) {
			return opts, newValidationError("unknown country %q (see 'fxrates countries')", code)
		}
	}

	return opts, nil
}

const (
	intentFrom   = "from"
	intentTo     = "to"
	intentAmount = "amount"
	intentRetry  = "retry"
	intentQuit   = "quit"
)

// intent is one command typed into the watch view
type intent struct {
	kind string
	arg  string
}

// parseIntent parses a line typed into the watch view
func parseIntent(line string) (intent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return intent{}, fmt.Errorf("type a command: from <code>, to <code>, amount <n>, retry, quit")
	}

	kind := strings.ToLower(fields[0])
	switch kind {
	case "q", "exit":
		kind = intentQuit
	case "r":
		kind = intentRetry
	}

	switch kind {
	case intentQuit, intentRetry:
		return intent{kind: kind}, nil
	case intentFrom, intentTo:
		if len(fields) != 2 {
			return intent{}, fmt.Errorf("usage: %s <country-code>", kind)
		}
		return intent{kind: kind, arg: strings.ToUpper(fields[1])}, nil
	case intentAmount:
		if len(fields) != 2 {
			return intent{}, fmt.Errorf("usage: amount <number>")
		}
		return intent{kind: kind, arg: fields[1]}, nil
	}

	return intent{}, fmt.Errorf("unknown command %q", fields[0])
}

// applyIntent forwards an intent to the controller
func applyIntent(ctrl *refresh.Controller, table *country.Table, in intent) error {
	switch in.kind {
	case intentFrom, intentTo:
		if !table.Has(in.arg) {
			return fmt.Errorf("unknown country %q", in.arg)
		}
		if in.kind == intentFrom {
			ctrl.SelectFrom(in.arg)
		} else {
			ctrl.SelectTo(in.arg)
		}
	case intentAmount:
		ctrl.SetAmountText(in.arg)
	case intentRetry:
		ctrl.Retry()
	}
	return nil
}

// readLines streams lines from r until EOF or until ctx is done
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// formatStatus renders one status line for a view
func formatStatus(s refresh.State) string {
	var b strings.Builder

	rate := "-"
	if s.HasRate() {
		rate = pricing.FormatRate(s.ExchangeRate)
	}
	q := s.Quote()

	fmt.Fprintf(&b, "%s/%s %s | %s %s = %s %s (OFX %s)",
		s.SellCurrency, s.BuyCurrency, rate,
		pricing.FormatAmount(s.Amount), s.SellCurrency,
		q.TrueAmountText(), s.BuyCurrency, q.OFXAmountText())

	switch s.Phase {
	case refresh.PhaseFetching:
		b.WriteString(" [loading]")
	case refresh.PhaseFailed:
		fmt.Fprintf(&b, " [error: %s, retry %d/%d]", s.Error, s.RetryCount, s.MaxRetries)
	case refresh.PhaseExhausted:
		fmt.Fprintf(&b, " [error: %s, retries exhausted, type 'retry']", s.Error)
	}

	return b.String()
}

// watchEvent is the JSON line emitted for each change in --json mode
type watchEvent struct {
	Time         time.Time `json:"time"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Amount       float64   `json:"amount"`
	ExchangeRate *float64  `json:"exchangeRate"`
	TrueAmount   string    `json:"trueAmount"`
	OFXAmount    string    `json:"ofxAmount"`
	Phase        string    `json:"phase"`
	Error        string    `json:"error,omitempty"`
	RetryCount   int       `json:"retryCount"`
}

func newWatchEvent(s refresh.State) watchEvent {
	q := s.Quote()
	ev := watchEvent{
		Time:       time.Now().UTC(),
		From:       s.From,
		To:         s.To,
		Amount:     s.Amount,
		TrueAmount: q.TrueAmountText(),
		OFXAmount:  q.OFXAmountText(),
		Phase:      string(s.Phase),
		Error:      s.Error,
		RetryCount: s.RetryCount,
	}
	if s.HasRate() {
		rate := s.ExchangeRate
		ev.ExchangeRate = &rate
	}
	return ev
}

// watchView draws controller state to the terminal
type watchView struct {
	out     io.Writer
	bar     *progressbar.ProgressBar
	json    bool
	lastKey string
}

func newWatchView(out io.Writer, withBar, asJSON bool) *watchView {
	v := &watchView{out: out, json: asJSON}
	if withBar {
		v.bar = progressbar.NewOptions(progressSteps,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetWidth(20),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetDescription("Fetching rate..."),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	return v
}

func (v *watchView) render(s refresh.State) {
	status := formatStatus(s)

	if v.bar != nil {
		v.bar.Describe(status)
		_ = v.bar.Set(int(s.Progression * progressSteps))
		return
	}

	// Without a bar only report changes, not cadence progress
	if status == v.lastKey {
		return
	}
	v.lastKey = status

	if v.json {
		_ = json.NewEncoder(os.Stdout).Encode(newWatchEvent(s))
		return
	}
	fmt.Fprintln(v.out, status)
}

func (v *watchView) message(msg string) {
	if v.bar != nil {
		_ = v.bar.Clear()
	}
	fmt.Fprintln(v.out, msg)
}

func (v *watchView) finish() {
	if v.bar != nil {
		_ = v.bar.Clear()
	}
}
