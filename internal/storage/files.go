// Package storage is the byte-blob collaborator for chat file attachments.
// Blobs are keyed by (room, filename); contents are never interpreted
// beyond sniffing a content type for the attachment metadata.
package storage

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/vijikalavarkar/sanvi-technologies/internal/domain"
)

type FileStore struct {
	fs  afero.Fs
	dir string
}

func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

// key flattens (room, filename) into one name; filepath.Base strips any
// client-supplied path components.
func (s *FileStore) key(room domain.RoomID, filename string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s", room, filepath.Base(filename)))
}

// Save writes the blob and returns the attachment metadata for the
// enclosing chat event. An empty contentType is sniffed from the bytes.
func (s *FileStore) Save(room domain.RoomID, filename string, data []byte, contentType string) (domain.FileData, error) {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	path := s.key(room, filename)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return domain.FileData{}, fmt.Errorf("save %s: %w", path, err)
	}
	log.Debug().Str("module", "storage.files").Str("room", string(room)).Str("file", filename).Int("size", len(data)).Msg("blob stored")
	return domain.FileData{
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Open serves a previously stored blob back.
func (s *FileStore) Open(room domain.RoomID, filename string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.key(room, filename))
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", room, filename, err)
	}
	return f, nil
}

// Stat reports size for a stored blob, used by the download endpoint.
func (s *FileStore) Stat(room domain.RoomID, filename string) (int64, error) {
	info, err := s.fs.Stat(s.key(room, filename))
	if err != nil {
		return 0, fmt.Errorf("stat %s/%s: %w", room, filename, err)
	}
	return info.Size(), nil
}
