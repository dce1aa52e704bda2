// Package confkit holds small helpers shared by the configuration loaders:
// path resolution, sectioned config files and .env bootstrapping.
package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"
)

// ResolvePath expands environment variables in file and joins it with base
// unless it is already absolute.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(strings.TrimSpace(file))
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory of the main config file path.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// LoadFile decodes a json/yaml/toml file into T using go-zero's conf loader,
// which also applies `json:",default=..."` tags.
func LoadFile[T any](path string, useEnv bool) (*T, error) {
	LoadDotenvOnce()
	var cfg T
	var opts []conf.Option
	if useEnv {
		opts = append(opts, conf.UseEnv())
	}
	if err := conf.Load(path, &cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

// Section points at a configuration block that lives in its own file.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate resolves File against base and loads it with loader. An empty File
// leaves the section untouched.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if strings.TrimSpace(s.File) == "" {
		return nil
	}
	p := ResolvePath(base, s.File)
	v, err := loader(p)
	if err != nil {
		return err
	}
	s.File, s.Value = p, v
	return nil
}

// Configured reports whether the section was hydrated.
func (s Section[T]) Configured() bool {
	return s.Value != nil
}

// Or returns the hydrated value, or fallback when the section is empty.
func (s Section[T]) Or(fallback T) T {
	if s.Value == nil {
		return fallback
	}
	return *s.Value
}
