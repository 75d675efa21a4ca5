// Package s3 publishes archives to an S3 bucket.
package s3

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wireapp/wire-desktop/internal/cloud"
	"github.com/wireapp/wire-desktop/internal/constants"
)

const defaultRegion = "us-east-1"

// Options configures an S3 destination. Without static keys the default AWS
// credential chain (environment, shared config, instance role) is used.
type Options struct {
	Bucket string
	Region string
	Prefix string
	// Endpoint points at an S3 compatible service and enables path-style
	// addressing.
	Endpoint string

	AccessKeyID  string
	SecretKey    string
	SessionToken string

	// HTTPClient supplies the proxy, dialer, TLS and timeout settings shared
	// with the rest of the app.
	HTTPClient *nethttp.Client
}

// Destination uploads archives with PutObject.
type Destination struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3 destination.
func New(ctx context.Context, opts Options) (*Destination, error) {
	if opts.Bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithHTTPClient(buildableClient(opts.HTTPClient)),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretKey,
			opts.SessionToken,
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		// Archives are already checksummed by gzip; skip the extra trailer
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &Destination{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// buildableClient mirrors base into a client the SDK can still adjust, e.g.
// to add the roots from AWS_CA_BUNDLE. A plain *http.Client makes
// LoadDefaultConfig fail once a CA bundle is configured.
func buildableClient(base *nethttp.Client) *awshttp.BuildableClient {
	client := awshttp.NewBuildableClient()
	if base == nil {
		return client
	}
	if base.Timeout > 0 {
		client = client.WithTimeout(base.Timeout)
	}
	tr, ok := base.Transport.(*nethttp.Transport)
	if !ok {
		return client
	}
	return client.WithTransportOptions(func(t *nethttp.Transport) {
		t.Proxy = tr.Proxy
		if tr.DialContext != nil {
			t.DialContext = tr.DialContext
		}
		if tr.TLSClientConfig != nil {
			t.TLSClientConfig = tr.TLSClientConfig.Clone()
		}
		t.MaxIdleConns = tr.MaxIdleConns
		t.MaxIdleConnsPerHost = tr.MaxIdleConnsPerHost
		t.IdleConnTimeout = tr.IdleConnTimeout
		t.TLSHandshakeTimeout = tr.TLSHandshakeTimeout
		t.ForceAttemptHTTP2 = tr.ForceAttemptHTTP2
		// An empty non-nil map is how the shared transport turns HTTP/2 off
		if tr.TLSNextProto != nil && len(tr.TLSNextProto) == 0 {
			t.TLSNextProto = map[string]func(string, *tls.Conn) nethttp.RoundTripper{}
		}
	})
}

// Name returns "s3://<bucket>".
func (d *Destination) Name() string {
	return "s3://" + d.bucket
}

// Upload puts the archive at localPath under prefix/name.
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

	key := cloud.ObjectKey(d.prefix, name)
	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          cloud.NewProgressReader(f, info.Size(), progress),
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(constants.ArchiveContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", d.bucket, key), nil
}

var _ cloud.Destination = (*Destination)(nil)
