// Package tlsconfig builds TLS settings for the pack server and its clients.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config holds TLS options shared by the client and server side.
type Config struct {
	// Insecure disables server certificate verification and permits
	// plain http:// server URLs. Client side only.
	Insecure bool `json:"insecure"`

	// CACertFile is a PEM bundle of trusted CAs. Empty means system roots.
	CACertFile string `json:"ca_cert"`

	// CertFile and KeyFile enable TLS on the server when both are set.
	CertFile string `json:"cert"`
	KeyFile  string `json:"key"`
}

// DefaultTimeout bounds a whole client request, body included.
const DefaultTimeout = 30 * time.Second

// ErrIncompleteKeyPair is returned when only one of CertFile and KeyFile is set.
var ErrIncompleteKeyPair = errors.New("tlsconfig: cert and key must be set together")

// NewHTTPClient creates an http.Client using cfg's client-side settings.
// A zero timeout means DefaultTimeout.
func NewHTTPClient(cfg Config, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.Insecure,
	}

	if cfg.CACertFile != "" {
		pool, err := loadCertPool(cfg.CACertFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.RootCAs = pool
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsCfg,
		},
		Timeout: timeout,
	}, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate file %q: %w", path, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate file %q: no valid certificates found", path)
	}
	return pool, nil
}

// ServerEnabled reports whether a server key pair is configured.
func (c Config) ServerEnabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// ServerConfig loads the server key pair. It returns nil, nil when no
// key pair is configured.
func (c Config) ServerConfig() (*tls.Config, error) {
	if !c.ServerEnabled() {
		return nil, nil
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, ErrIncompleteKeyPair
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair %q, %q: %w", c.CertFile, c.KeyFile, err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// ValidateURL rejects http:// server URLs unless Insecure is set.
func (c Config) ValidateURL(url string) error {
	if strings.HasPrefix(url, "http://") && !c.Insecure {
		return fmt.Errorf("server URL %q uses plain http://; use https:// or pass --insecure", url)
	}
	return nil
}
