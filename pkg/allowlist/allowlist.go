// Package allowlist restricts which fxrates commands may run, for sandboxed
// or agent execution.
package allowlist

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	// EnvCommandAllowlist is the environment variable for allowed commands
	EnvCommandAllowlist = "FXRATES_COMMAND_ALLOWLIST"

	// EnvReadOnly blocks commands that write files or open listeners
	EnvReadOnly = "FXRATES_READONLY"
)

// ReadOnlyCommands only read rates and print them
var ReadOnlyCommands = []string{
	"countries",
	"rate",
	"watch",
	"version",
	"help",
}

// SideEffectCommands write the config file or expose a network listener
var SideEffectCommands = []string{
	"configure",
	"serve",
}

// Checker validates commands against the allowlist
type Checker struct {
	allowed  map[string]bool
	readOnly bool
	enabled  bool
}

// NewChecker creates a checker from environment variables
func NewChecker() *Checker {
	return newChecker(os.Getenv)
}

func newChecker(getenv func(string) string) *Checker {
	c := &Checker{allowed: make(map[string]bool)}

	if getenv(EnvReadOnly) != "" {
		c.readOnly = true
		c.enabled = true
		for _, cmd := range ReadOnlyCommands {
			c.allowed[cmd] = true
		}
		return c
	}

	list := getenv(EnvCommandAllowlist)
	if strings.TrimSpace(list) == "" {
		return c
	}

	c.enabled = true
	for _, cmd := range strings.Split(list, ",") {
		if cmd = strings.TrimSpace(strings.ToLower(cmd)); cmd != "" {
			c.allowed[cmd] = true
		}
	}
	return c
}

// IsAllowed reports whether a command may run. help and version always may.
func (c *Checker) IsAllowed(command string) bool {
	if !c.enabled {
		return true
	}

	command = strings.ToLower(strings.TrimSpace(command))
	if command == "help" || command == "version" {
		return true
	}
	return c.allowed[command]
}

// Check returns an error if the command is not allowed
func (c *Checker) Check(command string) error {
	if c.IsAllowed(command) {
		return nil
	}
	if c.readOnly {
		return fmt.Errorf("command '%s' is blocked: %s mode enabled (no config writes or listeners)", command, EnvReadOnly)
	}
	return fmt.Errorf("command '%s' is not in the allowlist (set via %s)", command, EnvCommandAllowlist)
}

// IsEnabled returns whether any restriction is active
func (c *Checker) IsEnabled() bool {
	return c.enabled
}

// IsReadOnly returns whether read-only mode is active
func (c *Checker) IsReadOnly() bool {
	return c.readOnly
}

// AllowedCommands returns the allowed commands in sorted order, or nil when unrestricted
func (c *Checker) AllowedCommands() []string {
	if !c.enabled {
		return nil
	}

	commands := make([]string, 0, len(c.allowed))
	for cmd := range c.allowed {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}
