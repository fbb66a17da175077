package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads a pipeline config from path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON. Defaults are applied and
// environment references are expanded before returning.
func Load(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	p, err := Decode(raw, filepath.Ext(path))
	if err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// Decode parses raw config bytes; ext selects the format (".yaml", ".yml",
// otherwise JSON).
func Decode(raw []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return Pipeline{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	}
	p.ApplyDefaults()
	p.ExpandEnv()
	return p, nil
}

// ExpandEnv replaces ${VAR} and $VAR references in every field that commonly
// carries secrets or host-specific paths.
func (p *Pipeline) ExpandEnv() {
	db := &p.Storage.DB
	for _, s := range []*string{&db.DSN, &db.Host, &db.User, &db.Password, &db.Name, &db.Schema, &db.Path} {
		*s = os.ExpandEnv(*s)
	}
	if k := p.Source.Kaggle; k != nil {
		k.Username = os.ExpandEnv(k.Username)
		k.Key = os.ExpandEnv(k.Key)
	}
	if f := p.Source.File; f != nil {
		f.Path = os.ExpandEnv(f.Path)
	}
	if h := p.Source.HTTP; h != nil {
		h.URL = os.ExpandEnv(h.URL)
	}
	p.Customers.Path = os.ExpandEnv(p.Customers.Path)
	p.Output.Dir = os.ExpandEnv(p.Output.Dir)
	p.Source.CacheDir = os.ExpandEnv(p.Source.CacheDir)
}
