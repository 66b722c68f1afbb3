package secrets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cvmcloud/deploy-client/api"
)

// ParseEnv reads KEY=VALUE pairs in dotenv format. Blank lines and lines
// starting with # are skipped, an optional "export " prefix is accepted, and
// single or double quotes around a value are stripped. Duplicate keys
// resolve last-write-wins while keeping the position of the first
// occurrence.
func ParseEnv(r io.Reader) ([]api.EnvVar, error) {
	var order []string
	values := make(map[string]string)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed env line %d: missing '='", lineNo)
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("malformed env line %d: empty key", lineNo)
		}

		value = strings.TrimSpace(value)
		value = unquote(value)

		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read env input: %w", err)
	}

	vars := make([]api.EnvVar, 0, len(order))
	for _, key := range order {
		vars = append(vars, api.EnvVar{Key: key, Value: values[key]})
	}
	return vars, nil
}

// LoadEnvFile parses a dotenv file from disk.
func LoadEnvFile(path string) ([]api.EnvVar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open env file: %w", err)
	}
	defer f.Close()

	vars, err := ParseEnv(f)
	if err != nil {
		return nil, fmt.Errorf("could not parse env file %s: %w", path, err)
	}
	return vars, nil
}

// FromProcessEnv picks the named variables from the process environment.
// A name not set in the environment is an error rather than a silently
// missing secret.
func FromProcessEnv(keys ...string) ([]api.EnvVar, error) {
	vars := make([]api.EnvVar, 0, len(keys))
	for _, key := range keys {
		value, ok := os.LookupEnv(key)
		if !ok {
			return nil, fmt.Errorf("environment variable %s is not set", key)
		}
		vars = append(vars, api.EnvVar{Key: key, Value: value})
	}
	return vars, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
