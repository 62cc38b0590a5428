// Package registryfile reads the YAML or JSON files that declare sources and
// publishers.
package registryfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type decoder struct {
	name string
	exts []string
	fn   func([]byte, any) error
}

var decoders = []decoder{
	{name: "yaml", exts: []string{".yaml", ".yml"}, fn: yaml.Unmarshal},
	{name: "json", exts: []string{".json"}, fn: json.Unmarshal},
}

// Decode reads the file at path into a fresh T. The extension selects the
// decoder; any other extension tries YAML, then JSON. what names the file in
// errors ("sources", "publishers").
func Decode[T any](path, what string) (T, error) {
	var zero T
	path = strings.TrimSpace(path)
	if path == "" {
		return zero, fmt.Errorf("%s file path is empty", what)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read %s file: %w", what, err)
	}
	return decodeBytes[T](raw, filepath.Ext(path), what)
}

func decodeBytes[T any](raw []byte, ext, what string) (T, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	candidates := decoders
	for _, d := range decoders {
		for _, e := range d.exts {
			if e == ext {
				candidates = []decoder{d}
			}
		}
	}

	var errs []error
	for _, d := range candidates {
		var out T
		if err := d.fn(raw, &out); err != nil {
			errs = append(errs, fmt.Errorf("decode %s %s: %w", d.name, what, err))
			continue
		}
		return out, nil
	}
	var zero T
	return zero, fmt.Errorf("%s file format not recognized (expected YAML or JSON): %w", what, errors.Join(errs...))
}

// CleanHeaders trims header names and values and drops blank entries. It
// returns nil when nothing is left.
func CleanHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CleanList trims every item and drops blanks. It returns nil when nothing
// is left.
func CleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
