package uploads

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, filename string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	file, header, err := req.FormFile("image")
	require.NoError(t, err)
	return file, header
}

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), maxBytes)
	require.NoError(t, err)
	return store
}

func TestSaveRandomizesName(t *testing.T) {
	store := newTestStore(t, 0)

	file, header := multipartUpload(t, "photo.PNG", []byte("png-bytes"))
	defer file.Close()

	name, err := store.Save(file, header)
	require.NoError(t, err)
	require.NotEqual(t, "photo.PNG", name)
	require.True(t, strings.HasSuffix(name, ".png"))

	path, err := store.Path(name)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)
}

func TestSaveRejectsUnsupportedExtension(t *testing.T) {
	store := newTestStore(t, 0)

	for _, filename := range []string{"doc.pdf", "script.sh", "image.gif", "noext"} {
		file, header := multipartUpload(t, filename, []byte("data"))
		_, err := store.Save(file, header)
		file.Close()
		require.ErrorIs(t, err, ErrUnsupportedType, filename)
	}
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	store := newTestStore(t, 16)

	file, header := multipartUpload(t, "big.jpg", bytes.Repeat([]byte("x"), 17))
	defer file.Close()

	_, err := store.Save(file, header)
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Empty(t, entries, "oversized upload must not leave a file behind")
}

func TestRemoveRejectsTraversal(t *testing.T) {
	store := newTestStore(t, 0)

	for _, name := range []string{"", "../etc/passwd", "sub/file.png", "..", ".", "/abs.png"} {
		require.ErrorIs(t, store.Remove(name), ErrInvalidName, name)

		_, err := store.Path(name)
		require.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestRemoveDeletesFile(t *testing.T) {
	store := newTestStore(t, 0)

	file, header := multipartUpload(t, "gone.jpeg", []byte("bytes"))
	defer file.Close()
	name, err := store.Save(file, header)
	require.NoError(t, err)

	require.NoError(t, store.Remove(name))
	_, err = os.Stat(filepath.Join(store.Dir(), name))
	require.True(t, os.IsNotExist(err))
}

func TestSaveReaderLargerThanHeader(t *testing.T) {
	// Header.Size is honest in net/http, but the store still caps the copy.
	store := newTestStore(t, 4)

	file, header := multipartUpload(t, "a.jpg", []byte("ok"))
	defer file.Close()
	_, err := store.Save(file, header)
	require.NoError(t, err)

	var _ io.Reader = file
}
