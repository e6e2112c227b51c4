// Package blobstore stores message attachments. Two backends exist: a
// local filesystem tree for development and an S3 bucket for deployments.
// Both sniff the real content type instead of trusting the file name.
package blobstore

import (
	"context"
	"io"

	"chat-sync/domain"
)

// Progress is invoked as bytes flow into the backend. Percent is 0..100,
// or -1 when the total size is unknown.
type Progress func(percent int)

// Uploader persists an attachment stream and returns its descriptor.
type Uploader interface {
	Upload(ctx context.Context, userID, name string, size int64, r io.Reader, progress Progress) (domain.Attachment, error)
}

// progressReader reports completion as a wrapped reader is consumed.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress Progress
}

func newProgressReader(r io.Reader, total int64, progress Progress) *progressReader {
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.progress != nil {
		if p.total > 0 {
			p.progress(int(p.read * 100 / p.total))
		} else {
			p.progress(-1)
		}
	}
	return n, err
}
