package allowlist

import (
	"reflect"
	"strings"
	"testing"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestChecker_Unrestricted(t *testing.T) {
	c := newChecker(envOf(nil))

	if c.IsEnabled() {
		t.Error("expected checker to be disabled")
	}
	for _, cmd := range append(ReadOnlyCommands, SideEffectCommands...) {
		if err := c.Check(cmd); err != nil {
			t.Errorf("Check(%q) error = %v", cmd, err)
		}
	}
	if c.AllowedCommands() != nil {
		t.Error("AllowedCommands() should be nil when unrestricted")
	}
}

func TestChecker_ReadOnly(t *testing.T) {
	c := newChecker(envOf(map[string]string{
		EnvReadOnly:         "1",
		EnvCommandAllowlist: "serve",
	}))

	if !c.IsReadOnly() {
		t.Fatal("expected read-only mode")
	}

	tests := []struct {
		command string
		allowed bool
	}{
		{"rate", true},
		{"watch", true},
		{"countries", true},
		{"version", true},
		{"serve", false},
		{"configure", false},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			if got := c.IsAllowed(tt.command); got != tt.allowed {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.command, got, tt.allowed)
			}
		})
	}

	err := c.Check("serve")
	if err == nil || !strings.Contains(err.Error(), EnvReadOnly) {
		t.Errorf("Check(serve) error = %v, want mention of %s", err, EnvReadOnly)
	}
}

func TestChecker_ExplicitList(t *testing.T) {
	c := newChecker(envOf(map[string]string{EnvCommandAllowlist: " Rate, countries ,,"}))

	if !c.IsAllowed("rate") || !c.IsAllowed("COUNTRIES") {
		t.Error("listed commands should be allowed")
	}
	if c.IsAllowed("watch") {
		t.Error("unlisted command should be blocked")
	}
	if !c.IsAllowed("help") || !c.IsAllowed("version") {
		t.Error("help and version are always allowed")
	}

	want := []string{"countries", "rate"}
	if got := c.AllowedCommands(); !reflect.DeepEqual(got, want) {
		t.Errorf("AllowedCommands() = %v, want %v", got, want)
	}

	err := c.Check("watch")
	if err == nil || !strings.Contains(err.Error(), EnvCommandAllowlist) {
		t.Errorf("Check(watch) error = %v", err)
	}
}
