package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	cerr "github.com/cockroachdb/errors"
)

// SecureTLSConfig creates a TLS configuration with certificate validation,
// optionally trusting an extra CA from caCertPath.
func SecureTLSConfig(caCertPath string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if caCertPath == "" {
		return tlsConfig, nil
	}
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, cerr.Wrapf(err, "failed to read CA certificate from %s", caCertPath)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, cerr.Newf("failed to parse CA certificate from %s", caCertPath)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
