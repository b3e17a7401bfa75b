package secrets

import (
	"context"
	"os"
	"strings"

	"support-middleware/internal/pipeline"
)

// EnvReader resolves secrets from environment variables. The logical name is
// upper-cased and prefixed, so "webhook_token" reads SECRET_WEBHOOK_TOKEN.
// Suited to local development and container injection; rotation happens by
// restarting with new env, so Put is not offered.
type EnvReader struct {
	// Prefix defaults to "SECRET_".
	Prefix string
}

// Get returns the env-resolved secret, or a ConfigError when unset or empty.
func (r *EnvReader) Get(_ context.Context, name string) (string, error) {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "SECRET_"
	}
	key := prefix + strings.ToUpper(name)
	value := os.Getenv(key)
	if value == "" {
		return "", &pipeline.ConfigError{Name: name, Reason: "env var " + key + " is not set"}
	}
	return value, nil
}
