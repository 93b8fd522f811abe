package validation

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	maxNameLength = 255
	maxTags       = 20
	maxTagLength  = 50
)

// ValidateFileName rejects names that could escape a folder or that no
// filesystem would accept. Any content type is allowed.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("file name is required")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("file name is too long (max %d characters)", maxNameLength)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.New("file name must not contain path separators")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New("file name contains control characters")
		}
	}
	return nil
}

// ValidateFolderName applies the file name rules to folder and project names.
func ValidateFolderName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("name is required")
	}
	if len(trimmed) > 100 {
		return errors.New("name is too long (max 100 characters)")
	}
	return ValidateFileName(trimmed)
}

// ParseTags splits a comma-separated tag list, trimming and dropping blanks.
func ParseTags(raw string) ([]string, error) {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) > maxTagLength {
			return nil, fmt.Errorf("tag %q is too long (max %d characters)", t, maxTagLength)
		}
		tags = append(tags, t)
	}
	if len(tags) > maxTags {
		return nil, fmt.Errorf("too many tags (max %d)", maxTags)
	}
	return tags, nil
}

// DetectMimeType sniffs the first 512 bytes and rewinds r. Generic sniff
// results fall back to the extension, then to the declared type.
func DetectMimeType(r io.ReadSeeker, name, declared string) (string, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	_, err = r.Seek(0, io.SeekStart)
	if err != nil {
		return "", fmt.Errorf("failed to reset file pointer: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	if detected != "application/octet-stream" && !strings.HasPrefix(detected, "text/plain") {
		return detected, nil
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt, nil
	}
	if declared != "" {
		return declared, nil
	}
	return detected, nil
}
