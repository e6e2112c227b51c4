package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"chat-sync/domain"

	"github.com/gabriel-vasile/mimetype"
)

// FilesystemStore writes attachments under root/{userID}/, prefixing the
// name with a nanosecond timestamp so repeated uploads of the same file
// never collide.
type FilesystemStore struct {
	root string
}

func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: root}
}

func (s *FilesystemStore) Upload(ctx context.Context, userID, name string, size int64, r io.Reader, progress Progress) (domain.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attachment{}, err
	}

	dir := filepath.Join(s.root, userID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return domain.Attachment{}, err
	}

	base := filepath.Base(name)
	path := filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), base))
	f, err := os.Create(path)
	if err != nil {
		return domain.Attachment{}, err
	}

	written, err := io.Copy(f, newProgressReader(r, size, progress))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return domain.Attachment{}, err
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return domain.Attachment{}, err
	}

	return domain.Attachment{
		Name:        base,
		Size:        written,
		URL:         "file://" + path,
		ContentType: mime.String(),
	}, nil
}
