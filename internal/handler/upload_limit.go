package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

// multipartOverhead covers form boundaries and small text fields around the
// file part.
const multipartOverhead = 1024 * 1024

type upload struct {
	FileName string
	MimeType string
	Data     []byte
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}

func limitBody(c *gin.Context, maxSize int64) {
	if maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)
	}
}

// readUpload loads the named multipart file into memory. It returns nil
// without error when the field is absent.
func readUpload(c *gin.Context, field string, maxSize int64) (*upload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file exceeds %s: %w", formatUploadLimit(maxSize), appErr.ErrInvalid)
		}
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("read form: %w", appErr.ErrInvalid)
	}
	if maxSize > 0 && file.Size > maxSize {
		return nil, fmt.Errorf("file exceeds %s: %w", formatUploadLimit(maxSize), appErr.ErrInvalid)
	}
	data, err := readFileHeader(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", appErr.ErrInvalid)
	}
	return &upload{
		FileName: file.Filename,
		MimeType: file.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
