package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// File is one raw submitted file. Open is called at most once per validation.
type File struct {
	Name string
	Size int64
	Type string
	Open func() (io.ReadCloser, error)
}

// FromBytes wraps an in-memory buffer as a File.
func FromBytes(name, mimeType string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Type: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// readAll reads the file content, failing once more than limit bytes are seen.
// A non-positive limit disables the check.
func readAll(f File, limit int64) ([]byte, error) {
	if f.Open == nil {
		return nil, errors.New("no content source")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if limit <= 0 {
		return io.ReadAll(rc)
	}
	if f.Size > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, f.Size, limit)
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit %d", ErrFileTooLarge, limit)
	}
	return data, nil
}
