package flags

import (
	"context"
	"log"
	"os"
)

// Env var names for the dev-only kill-switch override.
const (
	EnvAllowOverride      = "FLAGS_ENV_OVERRIDE"
	EnvSafeModeOverride   = "MW_SAFE_MODE_OVERRIDE"
	EnvAutomationOverride = "MW_AUTOMATION_ENABLED_OVERRIDE"
)

// EnvOverrideProvider wraps another provider with a dev-only contingency:
// when FLAGS_ENV_OVERRIDE=true AND both override vars are set, their values
// replace the store read. A partial override is ignored so a stray env var
// cannot accidentally change behavior.
type EnvOverrideProvider struct {
	Next Provider
}

// Current returns the env override when fully active, otherwise delegates.
func (p *EnvOverrideProvider) Current(ctx context.Context) (Flags, error) {
	if !ParseBool(os.Getenv(EnvAllowOverride)) {
		return p.Next.Current(ctx)
	}
	safeRaw, safeOK := os.LookupEnv(EnvSafeModeOverride)
	autoRaw, autoOK := os.LookupEnv(EnvAutomationOverride)
	if !safeOK || !autoOK {
		return p.Next.Current(ctx)
	}

	f := Flags{
		SafeMode:          ParseBool(safeRaw),
		AutomationEnabled: ParseBool(autoRaw),
	}.Effective()
	log.Printf("flags: env override active safe_mode=%t automation_enabled=%t", f.SafeMode, f.AutomationEnabled)
	return f, nil
}
