// Package config handles the herald.yaml file: loading, env expansion,
// and the typed defaults the run command merges flags over.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}. A bare $VAR is left
// alone so YAML content with dollar signs survives expansion.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references in raw
// config text. An unset or empty variable takes the default when one is
// given, otherwise it expands to the empty string; whether an empty value
// is acceptable is decided by whoever consumes the field.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[2]

		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}
