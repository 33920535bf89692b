package config

import (
	"fmt"
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvStrict expands ${VAR} references in s, failing loudly if any
// referenced variable is unset rather than silently substituting an empty
// string.
func expandEnvStrict(s string) (string, error) {
	for _, m := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok {
			return "", fmt.Errorf("environment variable %s is not set", m[1])
		}
	}
	return os.Expand(s, os.Getenv), nil
}
