package app

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvPath is the workspace .env file read at startup.
func EnvPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".env")
}

// LoadEnv exports the workspace .env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnv(workspace string) error {
	path := EnvPath(workspace)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// SetEnvValue writes key=value into the workspace .env, keeping other keys.
func SetEnvValue(workspace, key, value string) error {
	path := EnvPath(workspace)
	values := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		if values, err = godotenv.Read(path); err != nil {
			return err
		}
	}
	values[key] = value
	return godotenv.Write(values, path)
}
