package env

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/giantswarm/microerror"
	"github.com/joho/godotenv"
)

// LoadDotEnv parses a .env file and returns key-value pairs without
// touching the process environment. Quoting, comments, export prefixes and
// ${VAR} references to earlier keys follow godotenv.
func LoadDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, microerror.Maskf(envFileError, "%s: %s", path, err.Error())
	}
	return vars, nil
}

// LoadAndExportDotEnv parses a .env file, returns key-value pairs,
// and exports them to the OS environment for {{$VAR}} resolution.
// Variables are only exported if not already set in the OS environment.
func LoadAndExportDotEnv(path string) (map[string]string, error) {
	vars, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}

	for k, v := range vars {
		if _, ok := os.LookupEnv(k); !ok {
			_ = os.Setenv(k, v)
		}
	}

	return vars, nil
}

// DotEnvFiles lists the dotenv files read for an environment, lowest
// precedence first.
func DotEnvFiles(dir, envName string) []string {
	files := []string{filepath.Join(dir, ".env")}
	if envName != "" {
		files = append(files, filepath.Join(dir, ".env."+envName))
	}
	return append(files, filepath.Join(dir, ".env.local"))
}

// LoadDotEnvDir reads every existing file from DotEnvFiles, later files
// overriding earlier ones. Missing files are skipped.
func LoadDotEnvDir(dir, envName string) (map[string]string, error) {
	result := make(map[string]string)
	for _, path := range DotEnvFiles(dir, envName) {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		vars, err := LoadDotEnv(path)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			result[k] = v
		}
	}
	return result, nil
}
