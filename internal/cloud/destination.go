// Package cloud publishes finished backup archives to remote object storage.
//
// Each backend implements Destination; Publisher uploads one archive to any
// number of destinations concurrently, retrying transient failures per
// destination.
package cloud

import (
	"context"
	"io"
	"path"
	"strings"
)

// ProgressCallback is called during uploads with values from 0.0 to 1.0.
type ProgressCallback func(progress float64)

// Destination is a remote location archives can be published to.
type Destination interface {
	// Name identifies the destination in logs and progress output.
	Name() string
	// Upload stores the file at localPath under name and returns its remote
	// location. Upload may be called again after a failure.
	Upload(ctx context.Context, localPath, name string, progress ProgressCallback) (string, error)
}

// ObjectKey joins prefix and name into an object key. Leading and trailing
// slashes of the prefix are dropped.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// ProgressReader reports read progress of a seekable body. Seeking resets
// the count, so SDK retries that rewind the body restart the progress.
type ProgressReader struct {
	r    io.ReadSeeker
	size int64
	read int64
	cb   ProgressCallback
}

// NewProgressReader wraps r, whose total length is size.
func NewProgressReader(r io.ReadSeeker, size int64, cb ProgressCallback) *ProgressReader {
	return &ProgressReader{r: r, size: size, cb: cb}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.cb != nil && p.size > 0 && n > 0 {
		frac := float64(p.read) / float64(p.size)
		if frac > 1 {
			frac = 1
		}
		p.cb(frac)
	}
	return n, err
}

func (p *ProgressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}
