package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"
)

// TemporalTLS builds the client TLS config for the Temporal frontend, or
// nil when no client certificate is configured. The key pair is re-read
// whenever the certificate file changes, so rotated certificates are picked
// up on the next handshake without a restart.
func (c *Config) TemporalTLS() (*tls.Config, error) {
	if c.TemporalTLSCert == "" && c.TemporalTLSKey == "" {
		return nil, nil
	}

	reloader := &certReloader{certPath: c.TemporalTLSCert, keyPath: c.TemporalTLSKey}
	if _, err := reloader.load(); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:           tls.VersionTLS12,
		ServerName:           c.TemporalTLSServerName,
		GetClientCertificate: reloader.clientCertificate,
	}

	if c.TemporalTLSCACert != "" {
		pool, err := loadCAPool(c.TemporalTLSCACert)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read temporal CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse temporal CA cert %s", path)
	}
	return pool, nil
}

type certReloader struct {
	certPath, keyPath string

	mu      sync.Mutex
	cert    *tls.Certificate
	modTime time.Time
}

// load returns the cached key pair unless the certificate file is newer.
func (r *certReloader) load() (*tls.Certificate, error) {
	info, err := os.Stat(r.certPath)
	if err != nil {
		return nil, fmt.Errorf("load temporal client cert: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cert != nil && !info.ModTime().After(r.modTime) {
		return r.cert, nil
	}

	cert, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return nil, fmt.Errorf("load temporal client cert: %w", err)
	}
	r.cert, r.modTime = &cert, info.ModTime()
	return r.cert, nil
}

// clientCertificate keeps serving the last good pair if a reload fails
// halfway through a rotation.
func (r *certReloader) clientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	cert, err := r.load()
	if err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.cert != nil {
			return r.cert, nil
		}
		return nil, err
	}
	return cert, nil
}
