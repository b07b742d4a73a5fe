package migrations

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

const initialSchemaFile = "001_initial_schema.sql"

//go:embed sql/*.sql
var embedded embed.FS

var (
	// MigrationsDir, when set, is searched before the embedded schema.
	// Operators use it to ship a patched schema without rebuilding.
	MigrationsDir = ""
)

// GetInitialSchema returns the initial database schema
func GetInitialSchema() (string, error) {
	if MigrationsDir != "" {
		content, err := os.ReadFile(filepath.Join(MigrationsDir, initialSchemaFile))
		if err == nil {
			return string(content), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read schema override: %w", err)
		}
	}

	content, err := embedded.ReadFile("sql/" + initialSchemaFile)
	if err != nil {
		return "", fmt.Errorf("could not find embedded schema: %w", err)
	}
	return string(content), nil
}
