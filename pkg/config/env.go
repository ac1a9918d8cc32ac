package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envVarPattern matches the three supported reference forms in one pass:
// ${VAR:-default}, ${VAR} and $VAR. Group 1 holds the braced name, group 2
// the default (empty when none was written), group 3 the bare name.
var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(?::-([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// expandEnvVars expands environment variable references in a string. An
// unset (or empty) variable yields its default when one was written, and
// the empty string otherwise.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[3]
		}
		if val := os.Getenv(name); val != "" {
			return val
		}
		return groups[2]
	})
}

// parseValue re-parses an expanded string into bool/int/float where possible
// so that `timeout: ${LLM_TIMEOUT:-60}` stays numeric after expansion.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}

	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}

	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}

	return value
}

// ExpandEnvVarsInData recursively expands environment variables in decoded
// YAML data, preserving scalar types through re-parsing.
func ExpandEnvVarsInData(data any) any {
	switch v := data.(type) {
	case string:
		if expanded := expandEnvVars(v); expanded != v {
			return parseValue(expanded)
		}
		return v

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = ExpandEnvVarsInData(value)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = ExpandEnvVarsInData(item)
		}
		return result

	default:
		return v
	}
}

// LoadEnvFiles loads environment variables from .env files.
// Priority: .env.local (highest), then .env. Already-set variables win.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}
