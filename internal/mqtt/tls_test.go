package mqtt

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

func TestCipherSuiteIDAcceptsGoNames(t *testing.T) {
	id, err := CipherSuiteID("TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256")
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256), id)
}

func TestCipherSuiteIDAcceptsOpenSSLNames(t *testing.T) {
	tests := map[string]uint16{
		"ECDHE-ECDSA-AES128-GCM-SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		"ECDHE-ECDSA-AES256-GCM-SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		"ECDHE-ECDSA-CHACHA20-POLY1305": tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		"ECDHE-RSA-AES128-GCM-SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		"ECDHE-RSA-AES256-GCM-SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		"ECDHE-RSA-CHACHA20-POLY1305":   tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	}
	for name, want := range tests {
		id, err := CipherSuiteID(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, id, name)
	}
}

func TestCipherSuiteIDNormalizesInput(t *testing.T) {
	id, err := CipherSuiteID("  ecdhe-ecdsa-aes128-gcm-sha256 ")
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256), id)
}

func TestCipherSuiteIDRejectsUnknown(t *testing.T) {
	_, err := CipherSuiteID("TLS_NULL_WITH_NULL_NULL")
	assert.ErrorContains(t, err, "unknown or unsupported cipher suite")
}

// writeTestCertPair generates a self-signed ECDSA certificate and key and
// writes them as PEM files under dir.
func writeTestCertPair(t *testing.T, dir, name string) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, name+".pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyPath = filepath.Join(dir, name+".key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))
	return certPath, keyPath
}

func testSecurity(t *testing.T) TransportSecurity {
	t.Helper()
	dir := t.TempDir()
	caCert, _ := writeTestCertPair(t, dir, "ca")
	clientCert, clientKey := writeTestCertPair(t, dir, "client")
	return TransportSecurity{
		CAFile:   caCert,
		CertFile: clientCert,
		KeyFile:  clientKey,
	}
}

func TestBuildTLSConfig(t *testing.T) {
	sec := testSecurity(t)

	cfg, err := BuildTLSConfig(sec)
	require.NoError(t, err)

	assert.NotNil(t, cfg.RootCAs)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Zero(t, cfg.MaxVersion)
	assert.Nil(t, cfg.CipherSuites)
}

func TestBuildTLSConfigCipherRestrictionPinsTLS12(t *testing.T) {
	sec := testSecurity(t)
	sec.Cipher = "ECDHE-ECDSA-AES256-GCM-SHA384"

	cfg, err := BuildTLSConfig(sec)
	require.NoError(t, err)

	assert.Equal(t, []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384}, cfg.CipherSuites)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MaxVersion)
}

func TestBuildTLSConfigMissingCA(t *testing.T) {
	sec := testSecurity(t)
	sec.CAFile = filepath.Join(t.TempDir(), "absent.pem")

	_, err := BuildTLSConfig(sec)
	assert.ErrorContains(t, err, "reading CA certificate")
}

func TestBuildTLSConfigGarbageCA(t *testing.T) {
	sec := testSecurity(t)
	bad := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	sec.CAFile = bad

	_, err := BuildTLSConfig(sec)
	assert.ErrorContains(t, err, "no usable certificates")
}

func TestBuildTLSConfigMismatchedKeyPair(t *testing.T) {
	sec := testSecurity(t)
	otherCert, _ := writeTestCertPair(t, t.TempDir(), "other")
	sec.CertFile = otherCert

	_, err := BuildTLSConfig(sec)
	assert.ErrorContains(t, err, "loading client certificate")
}

func TestBuildTLSConfigUnknownCipher(t *testing.T) {
	sec := testSecurity(t)
	sec.Cipher = "ECDHE-ECDSA-DES-CBC3-SHA"

	_, err := BuildTLSConfig(sec)
	assert.ErrorContains(t, err, "unknown or unsupported cipher suite")
}
