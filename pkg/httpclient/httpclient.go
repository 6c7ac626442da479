// pkg/httpclient/httpclient.go

package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	cerr "github.com/cockroachdb/errors"
)

// MaxBodyBytes caps how much of a response body Fetch will read.
const MaxBodyBytes = 64 << 20

var defaultClient = mustNew(Config{Timeout: 30 * time.Second})

// Config holds the few knobs regen needs.
type Config struct {
	Timeout    time.Duration
	CACertFile string // optional extra root CA, PEM
}

// NewClient builds a client with TLS 1.2+ and a bounded dialer.
func NewClient(cfg Config) (*http.Client, error) {
	if cfg.Timeout <= 0 {
		return nil, cerr.Newf("invalid timeout %s", cfg.Timeout)
	}
	tlsConfig, err := SecureTLSConfig(cfg.CACertFile)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

func mustNew(cfg Config) *http.Client {
	c, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// StatusError is returned by Fetch for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return "GET " + e.URL + ": " + http.StatusText(e.StatusCode)
}

// Fetch GETs url and returns the body. Non-2xx responses are errors.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = defaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cerr.Wrapf(err, "build request for %s", url)
	}
	req.Header.Set("User-Agent", "regen/"+regen_io.Version)

	resp, err := client.Do(req)
	if err != nil {
		return nil, cerr.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, cerr.Wrapf(err, "read body of %s", url)
	}
	return body, nil
}
