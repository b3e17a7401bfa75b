package flags

import (
	"context"
	"os"
	"testing"
)

func TestParseBool(t *testing.T) {
	trues := []string{"1", "true", "TRUE", " yes ", "on", "On"}
	for _, v := range trues {
		if !ParseBool(v) {
			t.Errorf("ParseBool(%q) = false, want true", v)
		}
	}
	falses := []string{"", "0", "false", "off", "no", "bogus"}
	for _, v := range falses {
		if ParseBool(v) {
			t.Errorf("ParseBool(%q) = true, want false", v)
		}
	}
}

func TestEffective_SafeModeWins(t *testing.T) {
	f := Flags{SafeMode: true, AutomationEnabled: true}.Effective()
	if f.AutomationEnabled {
		t.Error("safe_mode=true must force automation_enabled=false")
	}

	f = Flags{SafeMode: false, AutomationEnabled: true}.Effective()
	if !f.AutomationEnabled {
		t.Error("automation_enabled should survive when safe_mode is off")
	}
}

func TestFailSafe(t *testing.T) {
	f := FailSafe()
	if !f.SafeMode || f.AutomationEnabled {
		t.Errorf("FailSafe = %+v, want safe_mode=true automation_enabled=false", f)
	}
}

type staticProvider struct {
	flags Flags
}

func (s staticProvider) Current(context.Context) (Flags, error) { return s.flags, nil }

func TestEnvOverride_InactiveWithoutOptIn(t *testing.T) {
	os.Unsetenv(EnvAllowOverride)
	os.Setenv(EnvSafeModeOverride, "false")
	os.Setenv(EnvAutomationOverride, "true")
	defer os.Unsetenv(EnvSafeModeOverride)
	defer os.Unsetenv(EnvAutomationOverride)

	p := &EnvOverrideProvider{Next: staticProvider{flags: FailSafe()}}
	f, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if f != FailSafe() {
		t.Errorf("flags = %+v, want delegate result without opt-in", f)
	}
}

func TestEnvOverride_IgnoresPartialOverride(t *testing.T) {
	os.Setenv(EnvAllowOverride, "true")
	os.Setenv(EnvSafeModeOverride, "false")
	os.Unsetenv(EnvAutomationOverride)
	defer os.Unsetenv(EnvAllowOverride)
	defer os.Unsetenv(EnvSafeModeOverride)

	p := &EnvOverrideProvider{Next: staticProvider{flags: FailSafe()}}
	f, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if f != FailSafe() {
		t.Errorf("flags = %+v, partial override must be ignored", f)
	}
}

func TestEnvOverride_ActiveAppliesSafeModeDominance(t *testing.T) {
	os.Setenv(EnvAllowOverride, "true")
	os.Setenv(EnvSafeModeOverride, "true")
	os.Setenv(EnvAutomationOverride, "true")
	defer os.Unsetenv(EnvAllowOverride)
	defer os.Unsetenv(EnvSafeModeOverride)
	defer os.Unsetenv(EnvAutomationOverride)

	p := &EnvOverrideProvider{Next: staticProvider{flags: Flags{}}}
	f, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !f.SafeMode {
		t.Error("SafeMode should be true from override")
	}
	if f.AutomationEnabled {
		t.Error("AutomationEnabled must be forced off while safe_mode is on")
	}
}
