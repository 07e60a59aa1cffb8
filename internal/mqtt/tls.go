package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// opensslNames translates the OpenSSL cipher spellings used by broker
// documentation (and existing test configs) to Go suite names.
var opensslNames = map[string]string{
	"ECDHE-ECDSA-AES128-GCM-SHA256": "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-ECDSA-AES256-GCM-SHA384": "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-ECDSA-CHACHA20-POLY1305": "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
	"ECDHE-RSA-AES128-GCM-SHA256":   "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-RSA-AES256-GCM-SHA384":   "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-RSA-CHACHA20-POLY1305":   "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
}

// CipherSuiteID resolves a cipher name to its TLS suite id. Both the Go
// name (TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256) and the OpenSSL spelling
// (ECDHE-ECDSA-AES128-GCM-SHA256) are accepted.
func CipherSuiteID(name string) (uint16, error) {
	want := strings.TrimSpace(name)
	if mapped, ok := opensslNames[strings.ToUpper(want)]; ok {
		want = mapped
	}
	for _, cs := range tls.CipherSuites() {
		if cs.Name == want {
			return cs.ID, nil
		}
	}
	return 0, errors.Errorf("unknown or unsupported cipher suite %q", name)
}

// BuildTLSConfig turns the configuration's security material into a
// tls.Config. Restricting the cipher pins TLS 1.2: Go offers no suite
// selection under TLS 1.3.
func BuildTLSConfig(sec TransportSecurity) (*tls.Config, error) {
	caPEM, err := os.ReadFile(sec.CAFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading CA certificate")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.Errorf("no usable certificates in %s", sec.CAFile)
	}

	cert, err := tls.LoadX509KeyPair(sec.CertFile, sec.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading client certificate")
	}

	cfg := &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if sec.Cipher != "" {
		id, err := CipherSuiteID(sec.Cipher)
		if err != nil {
			return nil, err
		}
		cfg.CipherSuites = []uint16{id}
		cfg.MaxVersion = tls.VersionTLS12
	}
	return cfg, nil
}
