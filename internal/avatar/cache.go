// Package avatar caches account pictures on disk.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/singleflight"

	"github.com/wireapp/wire-desktop/internal/account"
	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/logging"
	"github.com/wireapp/wire-desktop/internal/util/sanitize"
)

var (
	ErrNoPicture       = errors.New("account has no picture")
	ErrTooLarge        = errors.New("avatar exceeds size limit")
	ErrNotImage        = errors.New("avatar response is not an image")
	ErrUnexpectedReply = errors.New("unexpected avatar response")
)

// refSuffix names the sidecar file holding the picture reference a cached
// file was fetched for.
const refSuffix = ".ref"

// Cache stores one picture per account under dir.
type Cache struct {
	dir     string
	baseURL string
	client  *retryablehttp.Client
	logger  *logging.Logger
	group   singleflight.Group
}

// NewCache creates a cache in dir. Picture references that are not absolute
// URLs are resolved against baseURL.
func NewCache(dir, baseURL string, client *retryablehttp.Client, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cache{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger.Component("avatar"),
	}
}

// Path returns where the picture of accountID is stored.
func (c *Cache) Path(accountID string) (string, error) {
	name, err := sanitize.TableName(accountID)
	if err != nil {
		return "", fmt.Errorf("invalid account id %q: %w", accountID, err)
	}
	return filepath.Join(c.dir, name), nil
}

// ResolveURL turns a picture reference into a download URL.
func (c *Cache) ResolveURL(picture string) (string, error) {
	u, err := url.Parse(picture)
	if err != nil {
		return "", fmt.Errorf("invalid picture reference: %w", err)
	}
	if u.IsAbs() {
		if u.Scheme != "https" && u.Scheme != "http" {
			return "", fmt.Errorf("unsupported picture scheme %q", u.Scheme)
		}
		return picture, nil
	}
	return c.baseURL + "/assets/" + url.PathEscape(strings.TrimPrefix(picture, "/")), nil
}

// Fetch returns the cached picture path of acc, downloading it when the
// cache is missing or was fetched for a different reference. Concurrent
// calls for one account share a download.
func (c *Cache) Fetch(ctx context.Context, acc account.Account) (string, error) {
	if acc.Picture == "" {
		return "", ErrNoPicture
	}
	path, err := c.Path(acc.ID)
	if err != nil {
		return "", err
	}

	if c.upToDate(path, acc.Picture) {
		return path, nil
	}

	v, err, _ := c.group.Do(acc.ID+"\x00"+acc.Picture, func() (interface{}, error) {
		if c.upToDate(path, acc.Picture) {
			return path, nil
		}
		if err := c.download(ctx, path, acc.Picture); err != nil {
			return "", err
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) upToDate(path, picture string) bool {
	ref, err := os.ReadFile(path + refSuffix)
	if err != nil || string(ref) != picture {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (c *Cache) download(ctx context.Context, path, picture string) error {
	target, err := c.ResolveURL(picture)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create avatar request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnexpectedReply, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: %s", ErrNotImage, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxAvatarBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read avatar: %w", err)
	}
	if len(data) > constants.MaxAvatarBytes {
		return ErrTooLarge
	}
	if resp.Header.Get("Content-Type") == "" && !strings.HasPrefix(nethttp.DetectContentType(data), "image/") {
		return ErrNotImage
	}

	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	if err := writeFileAtomic(path+refSuffix, []byte(picture)); err != nil {
		return err
	}
	c.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Avatar cached")
	return nil
}

// Remove deletes the cached picture of accountID.
func (c *Cache) Remove(accountID string) error {
	path, err := c.Path(accountID)
	if err != nil {
		return err
	}
	for _, p := range []string{path, path + refSuffix} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Prune deletes cached pictures of accounts not in s.
func (c *Cache) Prune(s account.State) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	keep := make(map[string]bool, len(s.Accounts))
	for _, acc := range s.Accounts {
		keep[acc.ID] = true
	}
	for _, e := range entries {
		id := strings.TrimSuffix(e.Name(), refSuffix)
		if keep[id] || e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Attach prunes the cache whenever an account disappears from store.
func (c *Cache) Attach(store *account.Store) func() {
	count := len(store.Snapshot().Accounts)
	return store.Subscribe(func(s account.State) {
		if len(s.Accounts) < count {
			if err := c.Prune(s); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to prune avatars")
			}
		}
		count = len(s.Accounts)
	})
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create avatar directory: %w", err)
	}
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write avatar: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename avatar: %w", err)
	}
	return nil
}
