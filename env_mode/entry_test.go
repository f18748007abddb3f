package env_mode

import "testing"

func TestParseEnv(t *testing.T) {
	tests := map[string]ENV_MODE{
		"":            DevMode,
		"dev":         DevMode,
		" Production": ProMode,
		"prod":        ProMode,
		"testing":     TestMode,
		"staging":     DevMode,
	}
	for in, want := range tests {
		if got := ParseEnv(in); got != want {
			t.Errorf("ParseEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetMode(t *testing.T) {
	prev := Mode()
	defer SetMode(prev)

	SetMode(ProMode)
	if Mode() != ProMode {
		t.Fatalf("Mode() = %q after SetMode(ProMode)", Mode())
	}
}
