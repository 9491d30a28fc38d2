package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/armtemiy/armlab/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DecodeJSON parses the tree wire format.
// Syntax errors and unknown node types are reported as *ValidationError.
func DecodeJSON(data []byte) (*domain.Tree, error) {
	var tree domain.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, &ValidationError{Key: "tree", Reason: err.Error()}
	}
	return &tree, nil
}

// DecodeYAML parses a YAML rendition of the wire format.
// The document is converted to JSON first so both formats share one decoder.
func DecodeYAML(data []byte) (*domain.Tree, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Key: "tree", Reason: err.Error()}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &ValidationError{Key: "tree", Reason: err.Error()}
	}
	return DecodeJSON(raw)
}

// Decode picks the decoder by format ("json", "yaml" or "yml").
func Decode(data []byte, format string) (*domain.Tree, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		return DecodeYAML(data)
	case "json", "":
		return DecodeJSON(data)
	default:
		return nil, fmt.Errorf("unsupported tree format %q", format)
	}
}

// DecodeFile reads a tree from disk, choosing the format by extension.
func DecodeFile(path string) (*domain.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}
	return Decode(data, filepath.Ext(path))
}

// Encode renders the tree in the export format (indented JSON).
func Encode(tree *domain.Tree) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return buf.Bytes(), nil
}
