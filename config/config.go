/*
Package config loads and parses the relay's JSON configuration file,
and turns a server's TLS stanza into a ready-to-use
transport.TLSContext.
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/libsdf/socks5relay/transport"
)

// Config is the top-level configuration file shape: one or more listening
// servers, plus logging options.
type Config struct {
	Servers []ServerConfig `json:"servers"`
	Logging LoggingConfig  `json:"logging"`
}

// ServerConfig describes one downstream listener and the upstream it
// forwards accepted connections to.
type ServerConfig struct {
	Address  string         `json:"address"`
	Port     int            `json:"port"`
	Protocol string         `json:"protocol"` // "socks"
	TLS      *TLSConfig     `json:"ssl,omitempty"`
	Upstream UpstreamConfig `json:"upstream"`
}

// UpstreamConfig describes how a server reaches its targets: either
// direct, or chained through another SOCKS5 server.
type UpstreamConfig struct {
	Protocol string     `json:"protocol"` // "direct" | "socks"
	Address  string     `json:"address,omitempty"`
	Port     int        `json:"port,omitempty"`
	TLS      *TLSConfig `json:"ssl,omitempty"`
}

// TLSConfig describes the PEM material and verification policy for one
// TLS role (downstream server, or the link to a chained upstream).
type TLSConfig struct {
	CA          string `json:"ca,omitempty"`
	CertChain   string `json:"cert_chain,omitempty"`
	Cert        string `json:"cert,omitempty"`
	PrivateKey  string `json:"private_key,omitempty"`
	DHParam     string `json:"dh_param,omitempty"`
	VerifyDepth int    `json:"verify_depth,omitempty"`
	VerifyPeer  bool   `json:"verify_peer,omitempty"`
	VerifyHost  string `json:"verify_host,omitempty"`
}

// LoggingConfig controls the log package's verbosity and sink format.
type LoggingConfig struct {
	Level  string `json:"level"` // "debug"|"info"|"warn"|"error"
	Format string `json:"format,omitempty"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// BuildTLSContext turns cfg into a transport.TLSContext, loading whatever
// PEM material it names. DHParam is accepted for config-shape
// compatibility but is a documented no-op: crypto/tls has no equivalent
// to OpenSSL's static Diffie-Hellman parameter file, since it only
// negotiates ephemeral key exchange.
func BuildTLSContext(cfg *TLSConfig, role Role) (*transport.TLSContext, error) {
	b := transport.NewTLSContextBuilder()

	if cfg.CertChain != "" {
		b.LoadCertChain(cfg.CertChain)
	} else if cfg.Cert != "" && cfg.PrivateKey != "" {
		b.LoadCert(cfg.Cert, cfg.PrivateKey)
	}
	if cfg.CA != "" {
		b.LoadCaFile(cfg.CA)
	}
	if role == RoleServer {
		b.SetVerifyPeer(cfg.VerifyPeer)
	}
	if cfg.VerifyHost != "" {
		b.SetVerifyHost(cfg.VerifyHost)
	}

	return b.Build()
}

// Role distinguishes which side of a TLS handshake a TLSConfig configures,
// since peer verification only applies to the server role.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)
