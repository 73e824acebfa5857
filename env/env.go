// Package env reads .env files and merges them with the process environment.
package env

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ProcessEnv parses the .env file at filename. A missing file yields an
// empty map and no error.
func ProcessEnv(filename string) (map[string]string, error) {
	envMap, err := godotenv.Read(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return envMap, nil
}

// Merge returns the variables from file overlaid by the process environment,
// restricted to keys starting with prefix.
func Merge(file map[string]string, prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range file {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}
