package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultFile is the app config path relative to the project root.
const DefaultFile = "etc/backtest.yaml"

// ProjectRoot walks up from this source file to the directory holding go.mod,
// falling back to the working directory.
func ProjectRoot() string {
	if _, file, _, ok := runtime.Caller(0); ok {
		dir := filepath.Dir(file)
		for i := 0; i < 8; i++ {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ProjectPath joins the project root with rel.
func ProjectPath(rel string) string {
	return filepath.Join(ProjectRoot(), rel)
}
