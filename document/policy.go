package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxFileSize is the upload limit in bytes.
const MaxFileSize = 5 * 1024 * 1024

const maxDescriptionLen = 200

var (
	ErrEmptyFile      = errors.New("document: file is empty")
	ErrTooLarge       = errors.New("document: file exceeds 5MB limit")
	ErrTypeNotAllowed = errors.New("document: file type not allowed")
	ErrDescription    = errors.New("document: description exceeds 200 characters")
)

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".jpg":  "image/jpeg",
	".png":  "image/png",
}

// Extension returns the lower-cased extension of name including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ContentTypeFor maps an allowed file name to its content type.
func ContentTypeFor(name string) (string, error) {
	ct, ok := contentTypes[Extension(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q (allowed: .pdf, .docx, .xlsx, .jpg, .png)", ErrTypeNotAllowed, filepath.Ext(name))
	}
	return ct, nil
}

// CheckUpload applies the size and type policy to an incoming file.
func CheckUpload(name string, size int64, description string) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxFileSize {
		return ErrTooLarge
	}
	if _, err := ContentTypeFor(name); err != nil {
		return err
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return ErrDescription
	}
	return nil
}
