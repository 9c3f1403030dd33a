package types

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ImageFile is an image found during discovery
type ImageFile struct {
	Path        string `json:"path"`
	ContentType string `json:"type"`
	Size        int64  `json:"size"`
}

// Name returns the base name of the file
func (f *ImageFile) Name() string {
	return filepath.Base(f.Path)
}

// Dir returns the directory holding the file
func (f *ImageFile) Dir() string {
	return filepath.Dir(f.Path)
}

// Stem returns the base name without its extension
func (f *ImageFile) Stem() string {
	name := f.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Ext returns the extension including the leading dot
func (f *ImageFile) Ext() string {
	return filepath.Ext(f.Path)
}

// ToJSON converts ImageFile to JSON string
func (f *ImageFile) ToJSON() string {
	jsonBytes, _ := json.Marshal(f)
	return string(jsonBytes)
}

// String returns a human-readable representation
func (f *ImageFile) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File: %s\n", f.Path))
	sb.WriteString(fmt.Sprintf("Type: %s\n", f.ContentType))
	sb.WriteString(fmt.Sprintf("Size: %d bytes\n", f.Size))
	return sb.String()
}
