package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("DB_TYPE", "")
	t.Setenv("INVITATION_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.InvitationTTL != 7*24*time.Hour {
		t.Errorf("InvitationTTL = %v, want 168h", cfg.InvitationTTL)
	}
	if cfg.HTTPAddress() != ":8080" {
		t.Errorf("HTTPAddress() = %q", cfg.HTTPAddress())
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when TOKEN_SECRET is missing")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			TokenSecret:    "s",
			DatabaseType:   "sqlite",
			InvitationTTL:  time.Hour,
			IDPSyncTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid sqlite", mutate: func(c *Config) {}},
		{name: "postgres without url", mutate: func(c *Config) { c.DatabaseType = "postgres" }, wantErr: true},
		{name: "mysql with url", mutate: func(c *Config) { c.DatabaseType = "mysql"; c.DatabaseURL = "u:p@/db" }},
		{name: "idp without token url", mutate: func(c *Config) { c.IDPBaseURL = "https://idp" }, wantErr: true},
		{name: "zero sync timeout", mutate: func(c *Config) { c.IDPSyncTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")
	if got := getDuration("SWEEP_INTERVAL", time.Minute); got != time.Minute {
		t.Errorf("getDuration() = %v, want 1m", got)
	}
}

func TestWriteTimeoutOutlastsTransfer(t *testing.T) {
	tests := []struct {
		name string
		sync time.Duration
		want time.Duration
	}{
		{name: "fast idp keeps floor", sync: time.Second, want: 15 * time.Second},
		{name: "default timeout", sync: 5 * time.Second, want: 25 * time.Second},
		{name: "slow idp", sync: 10 * time.Second, want: 45 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{IDPSyncTimeout: tt.sync}
			got := c.WriteTimeout()
			if got != tt.want {
				t.Errorf("WriteTimeout() = %v, want %v", got, tt.want)
			}
			if got <= roleSyncCallsPerTransfer*tt.sync {
				t.Errorf("WriteTimeout() = %v does not outlast %d sync calls of %v", got, roleSyncCallsPerTransfer, tt.sync)
			}
		})
	}
}

func TestTrustedProxiesList(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.1 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "192.0.2.1" {
		t.Errorf("TrustedProxies = %q", cfg.TrustedProxies)
	}

	t.Setenv("TRUSTED_PROXIES", "")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %q, want none by default", cfg.TrustedProxies)
	}
}
