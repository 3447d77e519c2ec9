package genome

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyGenome     = errors.New("genome file is empty")
	ErrInvalidEncoding = errors.New("genome file is not valid UTF-8")
)

// Load reads the base genome. A missing, empty or non-UTF-8 file is fatal for
// a run, so every such case is reported as an error.
func Load(path string) (Text, error) {
	if path == "" {
		return "", fmt.Errorf("genome path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read genome %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read genome %s: %w", path, ErrInvalidEncoding)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("read genome %s: %w", path, ErrEmptyGenome)
	}
	return Text(data), nil
}

// Write stores genome text at path, creating parent directories.
func Write(path string, t Text) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(t), 0o644)
}

// GenerationFileName derives "<stem>_gen<N><ext>" from a base genome path,
// e.g. plastic_neuron.v -> plastic_neuron_gen5.v.
func GenerationFileName(basePath string, generation int) string {
	base := filepath.Base(basePath)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "genome"
	}
	if ext == "" {
		ext = ".v"
	}
	return fmt.Sprintf("%s_gen%d%s", stem, generation, ext)
}
