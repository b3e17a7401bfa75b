// Package flags exposes the operator kill switches (safe_mode and
// automation_enabled). Values are re-read for every event; nothing here
// caches across processing cycles, so a toggle takes effect on the next event.
package flags

import (
	"context"
	"strings"
)

// Flag names as provisioned in the runtime_flags table.
const (
	SafeModeFlag          = "safe_mode"
	AutomationEnabledFlag = "automation_enabled"
)

// Flags is a point-in-time read of both kill switches.
type Flags struct {
	SafeMode          bool
	AutomationEnabled bool
}

// Effective applies the safety dominance rule: safe mode always wins, so
// automation is off whenever safe mode is on.
func (f Flags) Effective() Flags {
	if f.SafeMode {
		f.AutomationEnabled = false
	}
	return f
}

// FailSafe is the posture used when flags cannot be read: observe, never act.
func FailSafe() Flags {
	return Flags{SafeMode: true, AutomationEnabled: false}
}

// Provider reads the current kill-switch values. Implementations must not
// cache longer than a single processing cycle.
type Provider interface {
	Current(ctx context.Context) (Flags, error)
}

// ParseBool interprets operator-entered flag values. Accepts 1/true/yes/on
// (any case) as true; everything else is false.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
