// Package store reads and writes plugin documents. The file suffix picks the
// encoding (.yaml, .yml, .json) and an optional trailing .zst or .lz4 picks
// the compression.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Compression is a document compression.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseFormat parses "yaml" or "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatYAML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format: %s (valid: yaml, json)", s)
	}
}

// ParseCompression parses "none", "zstd" or "lz4".
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return c, nil
	case "":
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("unknown compression: %s (valid: none, zstd, lz4)", s)
	}
}

// FileName returns the document file name for plugin name.
func FileName(name graph.SourceID, f Format, c Compression) string {
	out := string(name) + "." + string(f)
	switch c {
	case CompressionZstd:
		out += ".zst"
	case CompressionLZ4:
		out += ".lz4"
	}
	return out
}

// Detect derives format and compression from a path.
func Detect(path string) (Format, Compression, error) {
	base := strings.ToLower(filepath.Base(path))
	c := CompressionNone
	switch {
	case strings.HasSuffix(base, ".zst"):
		c = CompressionZstd
		base = strings.TrimSuffix(base, ".zst")
	case strings.HasSuffix(base, ".lz4"):
		c = CompressionLZ4
		base = strings.TrimSuffix(base, ".lz4")
	}
	switch filepath.Ext(base) {
	case ".yaml", ".yml":
		return FormatYAML, c, nil
	case ".json":
		return FormatJSON, c, nil
	default:
		return "", "", fmt.Errorf("unsupported plugin document %s (supported: .yaml, .yml, .json, optionally .zst or .lz4)", path)
	}
}

// IsDocument reports whether path has a supported plugin document suffix.
func IsDocument(path string) bool {
	_, _, err := Detect(path)
	return err == nil
}

// Load reads and validates a plugin document.
func Load(path string) (*graph.Plugin, error) {
	f, c, err := Detect(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin document: %w", err)
	}

	data, err := decompress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}

	var p graph.Plugin
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse JSON plugin document %s: %w", path, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse YAML plugin document %s: %w", path, err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plugin document %s: %w", path, err)
	}
	return &p, nil
}

// Save writes p to path, replacing any existing file atomically.
func Save(path string, p *graph.Plugin) error {
	f, c, err := Detect(path)
	if err != nil {
		return err
	}

	data, err := encode(p, f)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", p.Name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mastersort-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := compress(tmp, data, c); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func encode(p *graph.Plugin, f Format) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func compress(w io.Writer, data []byte, c Compression) error {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create compressor: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		_, err := w.Write(data)
		return err
	}
}

func decompress(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create decompressor: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(raw, nil)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
	default:
		return raw, nil
	}
}
