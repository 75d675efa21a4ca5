package http

import (
	nethttp "net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/logging"
)

// retryLogger adapts the zerolog logger to retryablehttp.LeveledLogger.
// Only warnings and errors are forwarded; retryablehttp logs every request
// at debug level.
type retryLogger struct {
	logger *logging.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// NewRetryClient wraps base with retries on connection errors and 5xx/429
// responses.
func NewRetryClient(base *nethttp.Client, logger *logging.Logger) *retryablehttp.Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = base
	retryClient.RetryMax = constants.MaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Logger = retryLogger{logger: logger.Component("http")}
	return retryClient
}
