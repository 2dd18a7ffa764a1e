package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	yaml "gopkg.in/yaml.v3"
)

func TestSecretString_Marshal(t *testing.T) {
	tests := []struct {
		name     string
		value    SecretString
		wantJSON string
		wantYAML any
		wantStr  string
	}{
		{"empty", "", "null", nil, ""},
		{"token", "tok-123", `"` + SecretStringValue + `"`, SecretStringValue, SecretStringValue},
		{"quotes", `a"b`, `"` + SecretStringValue + `"`, SecretStringValue, SecretStringValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := json.Marshal(tt.value)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if string(j) != tt.wantJSON {
				t.Errorf("json = %s, want %s", j, tt.wantJSON)
			}
			y, err := tt.value.MarshalYAML()
			if err != nil {
				t.Fatalf("MarshalYAML() error = %v", err)
			}
			if y != tt.wantYAML {
				t.Errorf("MarshalYAML() = %v, want %v", y, tt.wantYAML)
			}
			if got := fmt.Sprint(tt.value); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
			if tt.value.Value() != string(tt.value) {
				t.Errorf("Value() = %q", tt.value.Value())
			}
		})
	}
}

func TestFetchConfig_TokenRedacted(t *testing.T) {
	var fc FetchConfig
	if err := yaml.Unmarshal([]byte("timeout: 5s\nuser_agent: test\ntoken: backend-token\n"), &fc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if fc.Token.Value() != "backend-token" {
		t.Fatalf("Token = %q, loaded value must be kept", fc.Token.Value())
	}

	t.Run("yaml", func(t *testing.T) {
		out, err := yaml.Marshal(fc)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(out), "backend-token") || !strings.Contains(string(out), SecretStringValue) {
			t.Errorf("yaml output:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := json.Marshal(fc)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(out), "backend-token") {
			t.Errorf("json output leaked token: %s", out)
		}
	})

	t.Run("log", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		log := zap.New(core)
		log.Info("Fetching book", zap.Stringer("token", fc.Token), zap.String("agent", fc.UserAgent))

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("expected one entry, got %d", len(entries))
		}
		for k, v := range entries[0].ContextMap() {
			if strings.Contains(fmt.Sprint(v), "backend-token") {
				t.Errorf("field %q leaked token: %v", k, v)
			}
		}
	})

	t.Run("empty omitted", func(t *testing.T) {
		out, err := yaml.Marshal(FetchConfig{UserAgent: "test"})
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(out), "token") {
			t.Errorf("empty token must be omitted:\n%s", out)
		}
	})
}

func TestDump_TokenRedacted(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Fetch.Token = "dumpconfig-token"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.Contains(string(data), "dumpconfig-token") {
		t.Error("dumped configuration leaked fetch token")
	}
	if !strings.Contains(string(data), SecretStringValue) {
		t.Errorf("dumped configuration lost token placeholder:\n%s", data)
	}
}
