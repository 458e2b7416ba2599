package vocab

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from the file extension; anything
// other than .yaml/.yml is read as JSON, which is what training writes.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func Decode(r io.Reader, format Format) (Vocabulary, error) {
	raw := make(map[string][]string)
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&raw)
	default:
		err = json.NewDecoder(r).Decode(&raw)
	}
	if err != nil {
		return Vocabulary{}, fmt.Errorf("%w: decode %s: %v", sweeperrors.ErrInvalidVocabulary, format, err)
	}
	return New(raw)
}

func Encode(w io.Writer, v Vocabulary, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v.Map()); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.Map())
	}
}

func Load(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("open vocabulary %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}

func Save(path string, v Vocabulary) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create vocabulary dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vocabulary %s: %w", path, err)
	}
	if err := Encode(f, v, FormatFromPath(path)); err != nil {
		f.Close()
		return fmt.Errorf("write vocabulary %s: %w", path, err)
	}
	return f.Close()
}
