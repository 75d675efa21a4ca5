// Package providers builds publish destinations from settings.
package providers

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/wireapp/wire-desktop/internal/cloud"
	"github.com/wireapp/wire-desktop/internal/cloud/providers/azure"
	"github.com/wireapp/wire-desktop/internal/cloud/providers/s3"
	"github.com/wireapp/wire-desktop/internal/config"
)

// FromSettings returns the destinations enabled in b, S3 first. An empty
// result means publishing is off.
func FromSettings(ctx context.Context, b config.BackupSettings, httpClient *nethttp.Client) ([]cloud.Destination, error) {
	var dests []cloud.Destination

	if b.S3Bucket != "" {
		d, err := s3.New(ctx, s3.Options{
			Bucket:     b.S3Bucket,
			Region:     b.S3Region,
			Prefix:     b.S3Prefix,
			Endpoint:   b.S3Endpoint,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3 destination: %w", err)
		}
		dests = append(dests, d)
	}

	if b.AzureSASURL != "" {
		d, err := azure.New(b.AzureSASURL, b.AzureBlobPrefix, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to configure Azure destination: %w", err)
		}
		dests = append(dests, d)
	}

	return dests, nil
}
