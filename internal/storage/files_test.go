package storage

import (
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveAndOpen(t *testing.T) {
	req := require.New(t)
	s, err := NewFileStore(afero.NewMemMapFs(), "uploads")
	req.NoError(err)

	meta, err := s.Save("r1", "notes.txt", []byte("hello"), "text/plain")
	req.NoError(err)
	req.Equal("notes.txt", meta.Filename)
	req.Equal("text/plain", meta.ContentType)
	req.Equal(int64(5), meta.Size)

	f, err := s.Open("r1", "notes.txt")
	req.NoError(err)
	defer f.Close()
	data, err := io.ReadAll(f)
	req.NoError(err)
	req.Equal("hello", string(data))

	size, err := s.Stat("r1", "notes.txt")
	req.NoError(err)
	req.Equal(int64(5), size)
}

func TestFileStore_SniffsContentType(t *testing.T) {
	req := require.New(t)
	s, err := NewFileStore(afero.NewMemMapFs(), "uploads")
	req.NoError(err)

	png := []byte("\x89PNG\r\n\x1a\n")
	meta, err := s.Save("r1", "pic.png", png, "")
	req.NoError(err)
	req.Equal("image/png", meta.ContentType)
}

func TestFileStore_KeysAreRoomScoped(t *testing.T) {
	req := require.New(t)
	s, err := NewFileStore(afero.NewMemMapFs(), "uploads")
	req.NoError(err)

	_, err = s.Save("r1", "a.txt", []byte("one"), "text/plain")
	req.NoError(err)
	_, err = s.Save("r2", "a.txt", []byte("two"), "text/plain")
	req.NoError(err)

	f, err := s.Open("r1", "a.txt")
	req.NoError(err)
	defer f.Close()
	data, _ := io.ReadAll(f)
	req.Equal("one", string(data))
}

func TestFileStore_StripsPathComponents(t *testing.T) {
	req := require.New(t)
	s, err := NewFileStore(afero.NewMemMapFs(), "uploads")
	req.NoError(err)

	meta, err := s.Save("r1", "../../etc/passwd", []byte("nope"), "text/plain")
	req.NoError(err)
	req.Equal("passwd", meta.Filename)

	_, err = s.Open("r1", "passwd")
	req.NoError(err)
}

func TestFileStore_OpenMissing(t *testing.T) {
	req := require.New(t)
	s, err := NewFileStore(afero.NewMemMapFs(), "uploads")
	req.NoError(err)

	_, err = s.Open("r1", "ghost.txt")
	req.Error(err)
}
