package constants

import (
	"time"
)

// Application identity
const (
	// AppName - directory name under the user config dir and socket name prefix
	AppName = "wire-desktop"

	// Platform - value written to backup metadata
	Platform = "Desktop"

	// DefaultWebappURL - origin of the web client loaded into each account webview
	DefaultWebappURL = "https://app.wire.com"
)

// Accounts
const (
	// DefaultMaximumAccounts - maximum number of account records (3)
	DefaultMaximumAccounts = 3

	// MaximumAccountsCap - upper bound accepted from configuration
	MaximumAccountsCap = 32

	// PersistDebounce - coalescing window for account list persistence (500ms)
	// Changes inside the window are written once, after the window closes.
	PersistDebounce = 500 * time.Millisecond

	// AccountsFileName - persisted account list inside the user data dir
	AccountsFileName = "accounts.json"
)

// Backup archives
const (
	// MetaDataFileName - metadata entry inside every backup archive
	MetaDataFileName = "export.json"

	// TableFileExt - extension of table payload files
	TableFileExt = ".txt"

	// RowSeparator - appended after every SaveTable payload
	RowSeparator = "\r\n"

	// ArchiveTimeLayout - Go layout for the archive timestamp (YYYY-MM-DD_HH-mm-ss)
	ArchiveTimeLayout = "2006-01-02_15-04-05"

	// ArchivePrefix / ArchiveExt - archive file name parts
	ArchivePrefix = "backup-"
	ArchiveExt    = ".tar.gz"

	// MaxExtractBytes - total extracted size accepted from one archive (4 GB)
	MaxExtractBytes = 4 * 1024 * 1024 * 1024

	// ExportBatchSize - rows read from the local store per SaveTable call
	ExportBatchSize = 500

	// MaxConcurrentPublishes - destinations uploaded to at the same time
	MaxConcurrentPublishes = 4

	// ArchiveContentType - content type of published archives
	ArchiveContentType = "application/gzip"
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent - additional space to require beyond archive size (10%)
	DiskSpaceBufferPercent = 0.10
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Host bridge
const (
	// BridgeSocketName - Unix socket file inside the user data dir
	BridgeSocketName = "bridge.sock"

	// BridgeRequestTimeout - per-connection read/write deadline (30s)
	BridgeRequestTimeout = 30 * time.Second

	// BridgeClientTimeout - default client timeout for one request (10s)
	BridgeClientTimeout = 10 * time.Second

	// SSOCallbackPath - loopback path receiving the SSO redirect
	SSOCallbackPath = "/sso/callback"
)

// HTTP client
const (
	// HTTPDialTimeout - TCP connect timeout (30s)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive probe interval (30s)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - idle pooled connections are closed after this (90s)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake timeout (15s)
	HTTPTLSHandshakeTimeout = 15 * time.Second

	// HTTPRequestTimeout - overall timeout for small requests such as avatars (60s)
	HTTPRequestTimeout = 60 * time.Second

	// MaxAvatarBytes - avatars larger than this are refused (5 MB)
	MaxAvatarBytes = 5 * 1024 * 1024
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient HTTP errors
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	RetryMaxDelay = 15 * time.Second
)

// Settings
const (
	// SettingsVersion - current schema version of config/init.json
	SettingsVersion = 1

	// MaxSettingsFileSize - settings files larger than this are refused (10 MB)
	MaxSettingsFileSize = 10 * 1024 * 1024
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar updates (250ms)
	ProgressUpdateInterval = 250 * time.Millisecond
)
