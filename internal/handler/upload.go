package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

var errUnreadableFile = errors.New("unreadable file")

type fileTooLargeError struct {
	field string
	limit int64
}

func (e *fileTooLargeError) Error() string {
	return fmt.Sprintf("%s exceeds %dMB", e.field, e.limit>>20)
}

type formUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// formFile reads an optional multipart file. It returns nil, nil when the
// field is absent. A missing or generic content type is sniffed from the
// data.
func formFile(c echo.Context, field string, limit int64) (*formUpload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	if fh.Size > limit {
		return nil, &fileTooLargeError{field: field, limit: limit}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errUnreadableFile
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errUnreadableFile
	}
	if int64(len(data)) > limit {
		return nil, &fileTooLargeError{field: field, limit: limit}
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &formUpload{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

func writeUploadError(c echo.Context, err error) error {
	var tooLarge *fileTooLargeError
	if errors.As(err, &tooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse("too_large", err.Error()))
	}
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
}
