package integrations

import (
	"errors"
	"net/http"
	"time"

	"github.com/matzehuels/cargo-upgrade/pkg/buildinfo"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for registry requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// UserAgent returns the default User-Agent sent to registries.
func UserAgent() string {
	return "cargo-upgrade/" + buildinfo.Short() + " (https://github.com/matzehuels/cargo-upgrade)"
}
