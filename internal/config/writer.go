package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/schema"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/xdg"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

// ConfigDirMode is the file mode for configuration directories (user rwx only).
const ConfigDirMode = 0o700

// Writer handles writing configuration to TOML files.
type Writer struct {
	path string
}

// NewWriter creates a Writer targeting the global config file.
func NewWriter() *Writer {
	return &Writer{path: xdg.GlobalConfigFile()}
}

// NewWriterWithPath creates a Writer targeting path.
func NewWriterWithPath(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the config file this writer targets.
func (w *Writer) Path() string {
	return w.path
}

// Exists reports whether the target file exists.
func (w *Writer) Exists() bool {
	_, err := os.Stat(w.path)

	return err == nil
}

// Write writes cfg as TOML, prefixed with a schema directive, and places the
// JSON schema next to it.
func (w *Writer) Write(cfg *config.Config) error {
	if cfg == nil {
		return errors.Wrap(ErrInvalidConfig, "config is nil")
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, ConfigDirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	schemaData, err := schema.GenerateJSON(true)
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(filepath.Join(dir, schema.FileName), schemaData); err != nil {
		return errors.Wrap(err, "failed to write config schema")
	}

	if err := fsutil.WriteFileAtomic(w.path, data); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", w.path)
	}

	return nil
}

// Marshal encodes cfg as indented TOML with a leading schema directive.
func Marshal(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(schema.Directive("./" + schema.FileName))
	buf.WriteByte('\n')

	encoder := toml.NewEncoder(&buf)
	encoder.SetIndentTables(true)

	if err := encoder.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to encode config to TOML")
	}

	return buf.Bytes(), nil
}
