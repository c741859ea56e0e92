package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// parseMultipart parses a multipart request within the upload limits and
// responds with 400 when it cannot.
func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return false
	}
	return true
}

// readUpload loads one multipart file into memory.
func readUpload(fh *multipart.FileHeader) (attendance.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return attendance.Upload{}, fmt.Errorf("failed to open file %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return attendance.Upload{}, fmt.Errorf("failed to read file %s: %w", fh.Filename, err)
	}
	return attendance.Upload{Filename: filepath.Base(fh.Filename), Data: data}, nil
}

// formFiles returns the files of the first field that has any.
func formFiles(r *http.Request, fields ...string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	for _, f := range fields {
		if files := r.MultipartForm.File[f]; len(files) > 0 {
			return files
		}
	}
	return nil
}
