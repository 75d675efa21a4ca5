// Package azure publishes archives to an Azure Blob Storage container.
package azure

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/wireapp/wire-desktop/internal/cloud"
)

// Destination uploads archives into one container using a SAS URL.
type Destination struct {
	client    *azblob.Client
	account   string
	container string
	prefix    string
}

// New creates a destination from a container SAS URL such as
// https://<account>.blob.core.windows.net/<container>?<sas token>.
func New(sasURL, prefix string, httpClient *nethttp.Client) (*Destination, error) {
	parts, err := azblob.ParseURL(sasURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Azure SAS URL: %w", err)
	}
	if parts.ContainerName == "" {
		return nil, fmt.Errorf("Azure SAS URL has no container")
	}
	if parts.SAS.Signature() == "" {
		return nil, fmt.Errorf("Azure SAS URL has no signature")
	}

	container := parts.ContainerName
	parts.ContainerName = ""
	parts.BlobName = ""
	serviceURL := parts.String()

	opts := &azblob.ClientOptions{}
	if httpClient != nil {
		// Preserve the shared connection pool and proxy settings
		opts.ClientOptions = azcore.ClientOptions{Transport: httpClient}
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	account := parts.Host
	if parts.IPEndpointStyleInfo.AccountName != "" {
		account = parts.IPEndpointStyleInfo.AccountName
	}
	return &Destination{
		client:    client,
		account:   account,
		container: container,
		prefix:    prefix,
	}, nil
}

// Name returns "azure://<account>/<container>".
func (d *Destination) Name() string {
	return fmt.Sprintf("azure://%s/%s", d.account, d.container)
}

// Upload stores the archive at localPath as a block blob under prefix/name.
func (d *Destination) Upload(ctx context.Context, localPath, name string, progress cloud.ProgressCallback) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}
	size := info.Size()

	blobName := cloud.ObjectKey(d.prefix, name)
	opts := &azblob.UploadFileOptions{}
	if progress != nil && size > 0 {
		opts.Progress = func(n int64) {
			frac := float64(n) / float64(size)
			if frac > 1 {
				frac = 1
			}
			progress(frac)
		}
	}

	if _, err := d.client.UploadFile(ctx, d.container, blobName, f, opts); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", blobName, err)
	}
	return fmt.Sprintf("%s/%s", d.Name(), blobName), nil
}

var _ cloud.Destination = (*Destination)(nil)
