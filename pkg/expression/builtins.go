//nolint:revive // exported
package expression

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// helperUUID generates a UUID string, v4 unless "v7" is requested.
// Usage in expressions: uuid() or uuid("v7")
func helperUUID(args ...string) (string, error) {
	version := "v4"
	if len(args) > 0 {
		version = args[0]
	}

	switch version {
	case "v4":
		return uuid.New().String(), nil
	case "v7":
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("uuid: failed to generate v7: %w", err)
		}
		return id.String(), nil
	default:
		return "", fmt.Errorf("uuid: unsupported version %q, use \"v4\" or \"v7\"", version)
	}
}

func helperULID() string {
	return ulid.Make().String()
}

// helperGet resolves a binding reference dynamically: get("fetch.body.id").
func (e *UnifiedEnv) helperGet(path string) any {
	v, _ := e.Lookup(path)
	return v
}

func (e *UnifiedEnv) helperHas(path string) bool {
	_, ok := e.Lookup(path)
	return ok
}

// helperEnv reads an environment variable: env("HOME").
func (e *UnifiedEnv) helperEnv(name string) any {
	v, _ := e.Lookup(PrefixEnv + name)
	return v
}

func (e *UnifiedEnv) helperSecret(name string) any {
	v, _ := e.Lookup(PrefixSecrets + name)
	return v
}
