package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// APIKeyEnv is the environment variable holding the Earth Class Mail API key.
const APIKeyEnv = "EARTH_CLASS_MAIL_API_KEY"

// ErrNoAPIKey is returned when no source provides an API key.
var ErrNoAPIKey = errors.New("no api key")

// ResolveAPIKey finds the API key, in order:
//  1. the EARTH_CLASS_MAIL_API_KEY environment variable
//  2. api_key in the settings file
//  3. a line mentioning EARTH_CLASS_MAIL_API_KEY in envrcPath
//     (e.g. `export EARTH_CLASS_MAIL_API_KEY="..."`)
//
// An empty envrcPath skips the third source; a missing file is not an error.
func ResolveAPIKey(s *Settings, envrcPath string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, nil
	}
	if s != nil && s.APIKey != "" {
		return s.APIKey, nil
	}
	if envrcPath != "" {
		key, err := readEnvrcKey(envrcPath)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return "", ErrNoAPIKey
}

// readEnvrcKey returns the value assigned on the first line of path that
// mentions APIKeyEnv, with double quotes removed.
func readEnvrcKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, APIKeyEnv) {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			return "", nil
		}
		return strings.TrimSpace(strings.ReplaceAll(value, `"`, "")), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return "", nil
}
