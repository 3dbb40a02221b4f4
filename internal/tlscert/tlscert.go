// Package tlscert serves the HTTPS certificate from a PEM key pair on disk and
// picks up rotated files without a restart.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// MinTLSVersion is the minimum supported TLS version for the server.
const MinTLSVersion = tls.VersionTLS13

// Source hands out the key pair at CertFile/KeyFile. The pair is reloaded
// when either file's modification time changes.
type Source struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu      sync.Mutex
	cert    *tls.Certificate
	certMod time.Time
	keyMod  time.Time
}

// NewSource checks that both files exist, that the key is not readable by
// group or others, and that the pair parses.
func NewSource(certFile, keyFile string, logger *slog.Logger) (*Source, error) {
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("both tls_cert_file and tls_key_file are required when tls_mode=file")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := statFile(certFile); err != nil {
		return nil, fmt.Errorf("invalid certificate file: %w", err)
	}
	keyInfo, err := statFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("invalid key file: %w", err)
	}
	if perm := keyInfo.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("insecure key file permissions: %o (should be 0600 or 0400)", perm)
	}

	s := &Source{certFile: certFile, keyFile: keyFile, logger: logger}
	if _, err := s.current(); err != nil {
		return nil, err
	}
	return s, nil
}

// TLSConfig returns a server tls.Config backed by the source.
func (s *Source) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: MinTLSVersion,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return s.current()
		},
	}
}

// Description names the files for startup logs.
func (s *Source) Description() string {
	return fmt.Sprintf("file-based (cert=%s, key=%s)", s.certFile, s.keyFile)
}

func (s *Source) current() (*tls.Certificate, error) {
	certInfo, err := os.Stat(s.certFile)
	if err != nil {
		return s.fallback(fmt.Errorf("failed to stat certificate: %w", err))
	}
	keyInfo, err := os.Stat(s.keyFile)
	if err != nil {
		return s.fallback(fmt.Errorf("failed to stat key: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cert != nil && certInfo.ModTime().Equal(s.certMod) && keyInfo.ModTime().Equal(s.keyMod) {
		return s.cert, nil
	}

	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		if s.cert != nil {
			s.logger.Error("failed to reload certificate, keeping previous one",
				slog.String("cert_file", s.certFile),
				slog.String("error", err.Error()))
			return s.cert, nil
		}
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	if s.cert != nil {
		s.logger.Info("reloaded TLS certificate", slog.String("cert_file", s.certFile))
	}
	s.cert = &cert
	s.certMod = certInfo.ModTime()
	s.keyMod = keyInfo.ModTime()
	return s.cert, nil
}

// fallback keeps serving the last good pair while files are being swapped.
func (s *Source) fallback(err error) (*tls.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cert != nil {
		return s.cert, nil
	}
	return nil, err
}

func statFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return info, nil
}
