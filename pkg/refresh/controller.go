package refresh

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sanisideup/fxrates/pkg/client"
	"github.com/sanisideup/fxrates/pkg/country"
	"github.com/sanisideup/fxrates/pkg/logger"
	"github.com/sanisideup/fxrates/pkg/metrics"
	"github.com/sanisideup/fxrates/pkg/models"
	"github.com/sanisideup/fxrates/pkg/pricing"
	"go.uber.org/zap"
)

// Fetcher retrieves one rate. *client.Client satisfies it.
type Fetcher interface {
	FetchRate(ctx context.Context, query models.RateQuery) (*models.RateResult, error)
}

// Phase is the derived lifecycle phase of a view
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFetching  Phase = "fetching"
	PhaseSuccess   Phase = "success"
	PhaseFailed    Phase = "failed"
	PhaseExhausted Phase = "exhausted"
)

// Defaults used by DefaultOptions
const (
	DefaultRefreshRate   = 10 * time.Second
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 1.5
	DefaultMaxBackoff    = 5 * time.Minute
	DefaultFrom          = "AU"
	DefaultTo            = "US"
)

// Options configures a Controller
type Options struct {
	RefreshRate   time.Duration
	MaxRetries    int
	Margin        float64
	BackoffFactor float64
	MaxBackoff    time.Duration // 0 disables the cap
	FrameInterval time.Duration // 0 means the caller drives Tick
	DefaultFrom   string
	DefaultTo     string
	Amount        float64

	Countries *country.Table
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
}

// DefaultOptions returns the options of a stock view
func DefaultOptions() Options {
	return Options{
		RefreshRate:   DefaultRefreshRate,
		MaxRetries:    DefaultMaxRetries,
		Margin:        pricing.DefaultMargin,
		BackoffFactor: DefaultBackoffFactor,
		MaxBackoff:    DefaultMaxBackoff,
		DefaultFrom:   DefaultFrom,
		DefaultTo:     DefaultTo,
	}
}

// State is a point-in-time copy of a view
type State struct {
	From         string             `json:"from"`
	To           string             `json:"to"`
	SellCurrency string             `json:"sellCurrency"`
	BuyCurrency  string             `json:"buyCurrency"`
	Amount       float64            `json:"amount"`
	ExchangeRate float64            `json:"-"` // NaN until the first success
	Margin       float64            `json:"margin"`
	Loading      bool               `json:"loading"`
	Error        string             `json:"error"`
	RetryCount   int                `json:"retryCount"`
	MaxRetries   int                `json:"maxRetries"`
	Progression  float64            `json:"progression"`
	Phase        Phase              `json:"phase"`
	Interval     time.Duration      `json:"-"`
	UpdatedAt    time.Time          `json:"updatedAt,omitempty"`
	Source       *models.RateResult `json:"source,omitempty"`
	Generation   uint64             `json:"generation"`
}

// HasRate reports whether a rate has ever been received
func (s State) HasRate() bool {
	return !math.IsNaN(s.ExchangeRate)
}

// Quote derives the converted amounts from the state
func (s State) Quote() pricing.Quote {
	return pricing.NewQuote(s.Amount, s.ExchangeRate, s.Margin)
}

// Controller owns the rate of one view: it fetches, refreshes on a cadence,
// retries with backoff and discards results superseded by newer intents.
type Controller struct {
	mu sync.Mutex

	fetcher   Fetcher
	opts      Options
	countries *country.Table
	logger    *zap.Logger
	metrics   *metrics.Recorder
	policy    *intervalPolicy
	cadence   Cadence

	from        string
	to          string
	amount      float64
	rate        float64
	source      *models.RateResult
	updatedAt   time.Time
	loading     bool
	errMsg      string
	failed      bool
	retryCount  int
	progression float64

	generation     uint64
	cancelInFlight context.CancelFunc
	started        bool
	closed         bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	updates chan struct{}
}

// New creates a controller seeded from opts. Call Start to mount it.
func New(fetcher Fetcher, opts Options) *Controller {
	defaults := DefaultOptions()
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = defaults.RefreshRate
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.BackoffFactor < 1 || math.IsNaN(opts.BackoffFactor) || math.IsInf(opts.BackoffFactor, 0) {
		opts.BackoffFactor = defaults.BackoffFactor
	}
	if math.IsNaN(opts.Margin) || math.IsInf(opts.Margin, 0) {
		opts.Margin = defaults.Margin
	}
	if opts.DefaultFrom == "" {
		opts.DefaultFrom = defaults.DefaultFrom
	}
	if opts.DefaultTo == "" {
		opts.DefaultTo = defaults.DefaultTo
	}

	countries := opts.Countries
	if countries == nil {
		countries = country.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		fetcher:   fetcher,
		opts:      opts,
		countries: countries,
		logger:    logger.OrNop(opts.Logger),
		metrics:   opts.Metrics,
		policy:    newIntervalPolicy(opts.RefreshRate, opts.BackoffFactor, opts.MaxBackoff),
		from:      normalizeCode(opts.DefaultFrom),
		to:        normalizeCode(opts.DefaultTo),
		amount:    clampAmount(opts.Amount),
		rate:      math.NaN(),
		ctx:       ctx,
		cancel:    cancel,
		updates:   make(chan struct{}, 1),
	}
}

// Start mounts the view: it issues the initial fetch and starts the cadence
// when a frame interval is configured. Calling it again is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.closed || c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.fetchCycleLocked()
	c.mu.Unlock()

	if c.opts.FrameInterval > 0 {
		if err := c.cadence.Start(c.ctx, c.opts.FrameInterval, c.Tick); err != nil {
			c.logger.Warn("cadence not started", zap.Error(err))
		}
	}
}

// OnSelectionChange switches the view to a new country pair and fetches
// immediately. Selecting the current pair is a no-op.
func (c *Controller) OnSelectionChange(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectLocked(normalizeCode(from), normalizeCode(to))
}

// SelectFrom changes the sell-side country
func (c *Controller) SelectFrom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectLocked(normalizeCode(code), c.to)
}

// SelectTo changes the buy-side country
func (c *Controller) SelectTo(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectLocked(c.from, normalizeCode(code))
}

func (c *Controller) selectLocked(from, to string) {
	if c.closed || (from == c.from && to == c.to) {
		return
	}

	c.logger.Debug("selection changed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("previous_from", c.from),
		zap.String("previous_to", c.to))

	c.from, c.to = from, to
	c.supersedeLocked()
	c.fetchCycleLocked()
}

// ManualRetry clears the failure state, supersedes any in-flight request and
// fetches exactly once, even when automatic retries are exhausted.
func (c *Controller) ManualRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.logger.Debug("manual retry", zap.Int("retry_count", c.retryCount))
	c.supersedeLocked()
	c.fetchCycleLocked()
}

// Retry is shorthand for ManualRetry
func (c *Controller) Retry() {
	c.ManualRetry()
}

// SetAmount sets the amount to convert. Negative and non-finite values become 0.
func (c *Controller) SetAmount(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.amount = clampAmount(amount)
	c.signalLocked()
}

// SetAmountText parses user input as the amount; unparsable text becomes 0
func (c *Controller) SetAmountText(text string) {
	c.SetAmount(ParseAmount(text))
}

// Tick advances the cadence by delta. When the progression reaches a full
// interval the next fetch starts. Ticks are ignored while a fetch is in
// flight, after retries are exhausted and after Close.
func (c *Controller) Tick(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.loading || c.exhaustedLocked() || delta <= 0 {
		return
	}

	interval := c.policy.interval()
	if interval <= 0 {
		return
	}

	c.progression += float64(delta) / float64(interval)
	if c.progression >= 1 {
		c.progression = 0
		c.fetchCycleLocked()
		return
	}
	c.signalLocked()
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Quote returns the converted amounts for the current state
func (c *Controller) Quote() pricing.Quote {
	return c.Snapshot().Quote()
}

// Updates signals state changes. Signals coalesce; read Snapshot after each.
// The channel is closed by Close.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Close unmounts the view: it stops the cadence, cancels the in-flight
// request and waits for background work. Later intents are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	if c.cancelInFlight != nil {
		c.cancelInFlight()
		c.cancelInFlight = nil
	}
	c.loading = false
	close(c.updates)
	c.mu.Unlock()

	c.cadence.Stop()
	c.cancel()
	c.wg.Wait()

	c.logger.Debug("view closed")
}

// supersedeLocked invalidates in-flight work and clears the failure state
func (c *Controller) supersedeLocked() {
	c.generation++
	if c.cancelInFlight != nil {
		c.cancelInFlight()
		c.cancelInFlight = nil
	}
	c.loading = false
	c.retryCount = 0
	c.progression = 0
	c.errMsg = ""
	c.failed = false
	c.policy.reset()
}

// fetchCycleLocked starts a fetch unless one is already outstanding
func (c *Controller) fetchCycleLocked() {
	if c.closed || c.loading {
		return
	}

	c.loading = true
	c.errMsg = ""

	gen := c.generation
	query := models.RateQuery{
		SellCurrency: c.countries.GetCurrencyCode(c.from),
		BuyCurrency:  c.countries.GetCurrencyCode(c.to),
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelInFlight = cancel

	c.logger.Debug("fetching rate",
		zap.String("pair", query.Pair()),
		zap.Uint64("generation", gen),
		zap.Int("retry_count", c.retryCount))

	c.wg.Add(1)
	go c.fetch(ctx, cancel, gen, query)

	c.signalLocked()
}

func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, query models.RateQuery) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	result, err := c.fetcher.FetchRate(ctx, query)
	c.complete(gen, query, result, err, time.Since(start))
}

func (c *Controller) complete(gen uint64, query models.RateQuery, result *models.RateResult, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		c.metrics.StaleResponse()
		c.logger.Debug("discarding stale rate response",
			zap.String("pair", query.Pair()),
			zap.Uint64("generation", gen),
			zap.Uint64("current_generation", c.generation))
		return
	}

	c.loading = false
	c.cancelInFlight = nil

	if err == nil && (result == nil || !validRate(result.RetailRate)) {
		err = &client.InvalidResponseError{}
	}

	if err != nil {
		c.failLocked(query, err, elapsed)
		c.signalLocked()
		return
	}

	c.rate = result.RetailRate
	c.source = result
	c.updatedAt = time.Now()
	c.retryCount = 0
	c.errMsg = ""
	c.failed = false
	c.policy.reset()

	c.metrics.ObserveFetch(metrics.OutcomeSuccess, elapsed)
	c.logger.Info("rate updated",
		zap.String("pair", query.Pair()),
		zap.Float64("rate", result.RetailRate),
		zap.Duration("elapsed", elapsed))

	c.signalLocked()
}

func (c *Controller) failLocked(query models.RateQuery, err error, elapsed time.Duration) {
	c.errMsg = err.Error()
	c.failed = true
	if c.retryCount < c.opts.MaxRetries {
		c.retryCount++
		c.policy.fail()
	}

	c.metrics.ObserveFetch(client.ErrorKind(err), elapsed)

	if c.exhaustedLocked() {
		c.metrics.RetriesExhausted()
		c.logger.Warn("rate fetch failed, retries exhausted",
			zap.String("pair", query.Pair()),
			zap.Int("retry_count", c.retryCount),
			zap.Error(err))
		return
	}

	c.logger.Warn("rate fetch failed",
		zap.String("pair", query.Pair()),
		zap.Int("retry_count", c.retryCount),
		zap.Duration("next_interval", c.policy.interval()),
		zap.Error(err))
}

func (c *Controller) exhaustedLocked() bool {
	return c.failed && c.retryCount >= c.opts.MaxRetries
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case c.loading:
		return PhaseFetching
	case c.exhaustedLocked():
		return PhaseExhausted
	case c.failed:
		return PhaseFailed
	case !math.IsNaN(c.rate):
		return PhaseSuccess
	}
	return PhaseIdle
}

func (c *Controller) snapshotLocked() State {
	return State{
		From:         c.from,
		To:           c.to,
		SellCurrency: c.countries.GetCurrencyCode(c.from),
		BuyCurrency:  c.countries.GetCurrencyCode(c.to),
		Amount:       c.amount,
		ExchangeRate: c.rate,
		Margin:       c.opts.Margin,
		Loading:      c.loading,
		Error:        c.errMsg,
		RetryCount:   c.retryCount,
		MaxRetries:   c.opts.MaxRetries,
		Progression:  c.progression,
		Phase:        c.phaseLocked(),
		Interval:     c.policy.interval(),
		UpdatedAt:    c.updatedAt,
		Source:       c.source,
		Generation:   c.generation,
	}
}

func (c *Controller) signalLocked() {
	if c.closed {
		return
	}
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// ParseAmount converts user input to an amount; invalid input yields 0
func ParseAmount(text string) float64 {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return clampAmount(v)
}

func clampAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func validRate(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
