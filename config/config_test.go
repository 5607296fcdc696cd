package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesServersAndLogging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.json")
	body := `{
		"servers": [
			{
				"address": "0.0.0.0",
				"port": 1080,
				"protocol": "socks",
				"upstream": {"protocol": "direct"}
			},
			{
				"address": "0.0.0.0",
				"port": 1081,
				"protocol": "socks",
				"upstream": {"protocol": "socks", "address": "10.0.0.1", "port": 1080}
			}
		],
		"logging": {"level": "debug", "format": "json"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(cfg.Servers))
	}
	if cfg.Servers[0].Upstream.Protocol != "direct" {
		t.Fatalf("server 0 upstream protocol = %q, want direct", cfg.Servers[0].Upstream.Protocol)
	}
	if cfg.Servers[1].Upstream.Address != "10.0.0.1" || cfg.Servers[1].Upstream.Port != 1080 {
		t.Fatalf("server 1 upstream = %+v", cfg.Servers[1].Upstream)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/relay.json"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestBuildTLSContextWithoutMaterialStillBuilds(t *testing.T) {
	// No cert/key/CA named: BuildTLSContext should still produce a usable
	// (if unverified) TLSContext, since every field is optional.
	tctx, err := BuildTLSContext(&TLSConfig{}, RoleClient)
	if err != nil {
		t.Fatalf("BuildTLSContext: %v", err)
	}
	if tctx == nil {
		t.Fatal("expected a non-nil TLSContext")
	}
}

func TestBuildTLSContextVerifyHost(t *testing.T) {
	tctx, err := BuildTLSContext(&TLSConfig{VerifyHost: "relay.example.com"}, RoleClient)
	if err != nil {
		t.Fatalf("BuildTLSContext: %v", err)
	}
	if tctx == nil {
		t.Fatal("expected a non-nil TLSContext")
	}
}

func TestBuildTLSContextMissingCertFails(t *testing.T) {
	_, err := BuildTLSContext(&TLSConfig{
		Cert:       "/nonexistent/cert.pem",
		PrivateKey: "/nonexistent/key.pem",
	}, RoleServer)
	if err == nil {
		t.Fatal("expected an error for a missing certificate path")
	}
}

func TestBuildTLSContextMissingCaFails(t *testing.T) {
	_, err := BuildTLSContext(&TLSConfig{CA: "/nonexistent/ca.pem"}, RoleClient)
	if err == nil {
		t.Fatal("expected an error for a missing CA path")
	}
}
