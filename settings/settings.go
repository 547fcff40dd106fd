// Package settings resolves runtime configuration from gocore, with
// sensible defaults for every key so the library works unconfigured.
package settings

import (
	"net/url"
	"time"
)

// Settings carries every tunable the validation engine reads.
type Settings struct {
	ClientName string
	LogLevel   string

	Validation ValidationSettings
	TxStore    TxStoreSettings
	Proxy      ProxySettings
}

// ValidationSettings bound the work a single validation job may do.
type ValidationSettings struct {
	// DownloadLimit is the maximum number of transactions a job may fetch
	// before giving up. 0 means unlimited.
	DownloadLimit int

	// DepthLimit is the deepest ancestry layer a job will descend to.
	// 0 means unlimited.
	DepthLimit int

	// FetchBatchSize caps how many waiting transactions are requested in
	// one network round trip.
	FetchBatchSize int

	// FetchTimeout bounds each batched network fetch.
	FetchTimeout time.Duration
}

// TxStoreSettings configure the HTTP transaction source.
type TxStoreSettings struct {
	Endpoint    *url.URL
	HTTPTimeout time.Duration
	Concurrency int
}

// ProxySettings configure the optional validity oracle.
type ProxySettings struct {
	// Enabled turns the oracle consultation on; an endpoint alone is not
	// enough, so a configured proxy can be switched off without losing it.
	Enabled bool

	Endpoint *url.URL
	Timeout  time.Duration
	CacheTTL time.Duration
}

func NewSettings() *Settings {
	return &Settings{
		ClientName: getString("clientName", "slpdag"),
		LogLevel:   getString("logLevel", "INFO"),
		Validation: ValidationSettings{
			DownloadLimit:  getInt("validation_downloadLimit", 2000),
			DepthLimit:     getInt("validation_depthLimit", 0),
			FetchBatchSize: getInt("validation_fetchBatchSize", 20),
			FetchTimeout:   getDuration("validation_fetchTimeout", 30*time.Second),
		},
		TxStore: TxStoreSettings{
			Endpoint:    getURL("txstore_httpEndpoint", ""),
			HTTPTimeout: getDuration("txstore_httpTimeout", 10*time.Second),
			Concurrency: getInt("txstore_httpConcurrency", 8),
		},
		Proxy: ProxySettings{
			Enabled:  getBool("proxy_enabled", false),
			Endpoint: getURL("proxy_endpoint", ""),
			Timeout:  getDuration("proxy_timeout", 3*time.Second),
			CacheTTL: getDuration("proxy_cacheTTL", 10*time.Minute),
		},
	}
}
