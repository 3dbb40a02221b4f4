package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyPair(t *testing.T, dir, commonName string, keyPerm os.FileMode) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), keyPerm))
	require.NoError(t, os.Chmod(keyPath, keyPerm))
	return certPath, keyPath
}

func leafCommonName(t *testing.T, cert *tls.Certificate) string {
	t.Helper()
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir, "sakila", 0o600)

	src, err := NewSource(certPath, keyPath, nil)
	require.NoError(t, err)
	assert.Contains(t, src.Description(), certPath)

	cfg := src.TLSConfig()
	assert.Equal(t, uint16(MinTLSVersion), cfg.MinVersion)
	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.Equal(t, "sakila", leafCommonName(t, cert))
}

func TestNewSource_Rejects(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir, "sakila", 0o644)

	_, err := NewSource(certPath, keyPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure key file permissions")

	_, err = NewSource("", keyPath, nil)
	require.Error(t, err)

	_, err = NewSource(filepath.Join(dir, "missing.crt"), keyPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid certificate file")

	_, err = NewSource(dir, keyPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestSource_ReloadsRotatedPair(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir, "first", 0o600)

	src, err := NewSource(certPath, keyPath, nil)
	require.NoError(t, err)

	writeKeyPair(t, dir, "second", 0o600)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(certPath, later, later))
	require.NoError(t, os.Chtimes(keyPath, later, later))

	cert, err := src.TLSConfig().GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.Equal(t, "second", leafCommonName(t, cert))
}

func TestSource_KeepsLastGoodPairWhileFilesAreMissing(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir, "stable", 0o600)

	src, err := NewSource(certPath, keyPath, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(certPath))

	cert, err := src.TLSConfig().GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.Equal(t, "stable", leafCommonName(t, cert))
}
