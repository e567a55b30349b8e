package cmd

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sanisideup/fxrates/pkg/refresh"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    intent
		wantErr bool
	}{
		{"from", "from nz", intent{kind: intentFrom, arg: "NZ"}, false},
		{"to upper", "TO GB", intent{kind: intentTo, arg: "GB"}, false},
		{"amount", "amount 250.5", intent{kind: intentAmount, arg: "250.5"}, false},
		{"retry", "retry", intent{kind: intentRetry}, false},
		{"retry short", "r", intent{kind: intentRetry}, false},
		{"quit", "quit", intent{kind: intentQuit}, false},
		{"exit alias", "exit", intent{kind: intentQuit}, false},
		{"surrounding space", "   from   au  ", intent{kind: intentFrom, arg: "AU"}, false},

		{"empty", "", intent{}, true},
		{"from without code", "from", intent{}, true},
		{"amount with extra", "amount 1 2", intent{}, true},
		{"unknown", "convert 100", intent{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntent(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIntent(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseIntent(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	base := refresh.State{
		From:         "AU",
		To:           "US",
		SellCurrency: "AUD",
		BuyCurrency:  "USD",
		Amount:       100,
		ExchangeRate: 0.6543,
		Margin:       0.005,
		MaxRetries:   3,
	}

	tests := []struct {
		name   string
		mutate func(*refresh.State)
		want   string
	}{
		{
			"success",
			func(s *refresh.State) { s.Phase = refresh.PhaseSuccess },
			"AUD/USD 0.6543 | 100.00 AUD = 65.43 USD (OFX 65.10)",
		},
		{
			"first load",
			func(s *refresh.State) {
				s.Phase = refresh.PhaseFetching
				s.ExchangeRate = math.NaN()
			},
			"AUD/USD - | 100.00 AUD = - USD (OFX -) [loading]",
		},
		{
			"failed",
			func(s *refresh.State) {
				s.Phase = refresh.PhaseFailed
				s.Error = "API error"
				s.RetryCount = 1
			},
			"AUD/USD 0.6543 | 100.00 AUD = 65.43 USD (OFX 65.10) [error: API error, retry 1/3]",
		},
		{
			"exhausted",
			func(s *refresh.State) {
				s.Phase = refresh.PhaseExhausted
				s.Error = "API error"
				s.RetryCount = 3
			},
			"AUD/USD 0.6543 | 100.00 AUD = 65.43 USD (OFX 65.10) [error: API error, retries exhausted, type 'retry']",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			if got := formatStatus(s); got != tt.want {
				t.Errorf("formatStatus() =\n  %q\nwant\n  %q", got, tt.want)
			}
		})
	}
}

func TestNewWatchEvent(t *testing.T) {
	s := refresh.State{From: "AU", To: "US", Amount: 10, ExchangeRate: math.NaN(), Phase: refresh.PhaseFetching}

	ev := newWatchEvent(s)
	if ev.ExchangeRate != nil {
		t.Errorf("ExchangeRate = %v, want nil before the first rate", *ev.ExchangeRate)
	}
	if ev.TrueAmount != "-" {
		t.Errorf("TrueAmount = %q, want -", ev.TrueAmount)
	}

	s.ExchangeRate = 2
	ev = newWatchEvent(s)
	if ev.ExchangeRate == nil || *ev.ExchangeRate != 2 {
		t.Errorf("ExchangeRate = %v, want 2", ev.ExchangeRate)
	}
	if ev.TrueAmount != "20.00" {
		t.Errorf("TrueAmount = %q, want 20.00", ev.TrueAmount)
	}
}

// endlessLines yields "retry" lines forever
type endlessLines struct{}

func (endlessLines) Read(p []byte) (int, error) {
	line := "retry\n"
	n := 0
	for n+len(line) <= len(p) {
		n += copy(p[n:], line)
	}
	return n, nil
}

func TestReadLines(t *testing.T) {
	var got []string
	for line := range readLines(context.Background(), strings.NewReader("from nz\namount 5\n")) {
		got = append(got, line)
	}
	if len(got) != 2 || got[0] != "from nz" || got[1] != "amount 5" {
		t.Errorf("readLines() = %q", got)
	}
}

func TestReadLines_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, endlessLines{})

	if line := <-lines; line != "retry" {
		t.Fatalf("first line = %q, want retry", line)
	}
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("readLines kept sending after the context was cancelled")
		}
	}
}
