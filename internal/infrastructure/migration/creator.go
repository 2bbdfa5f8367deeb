package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// versionWidth matches the zero-padded sequence used by the files in migrations/
const versionWidth = 6

// Each file runs in its own transaction on PostgreSQL so a failed step
// leaves the schema at the previous version.
var fileTemplate = template.Must(template.New("migration").Parse(`-- {{.Version}} {{.Name}} ({{.Direction}})
-- Created: {{.Timestamp}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

BEGIN;

COMMIT;
`))

// MigrationFile describes a newly created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration writes the next numbered up/down pair into migrationsDir.
// Existing files are never overwritten.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}
	version := fmt.Sprintf("%0*d", versionWidth, highestVersion(existing)+1)
	base := filepath.Join(migrationsDir, version+"_"+slug)

	mf := &MigrationFile{
		Version:     version,
		Name:        slug,
		Description: description,
		Timestamp:   time.Now().Format(time.RFC3339),
		UpPath:      base + ".up.sql",
		DownPath:    base + ".down.sql",
	}
	if err := writeMigrationFile(mf.UpPath, mf, "up"); err != nil {
		return nil, err
	}
	if err := writeMigrationFile(mf.DownPath, mf, "down"); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func highestVersion(bases []string) uint64 {
	var highest uint64
	for _, base := range bases {
		prefix, _, _ := strings.Cut(base, "_")
		if v, err := strconv.ParseUint(prefix, 10, 64); err == nil && v > highest {
			highest = v
		}
	}
	return highest
}

func writeMigrationFile(path string, mf *MigrationFile, direction string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	data := struct {
		*MigrationFile
		Direction string
	}{mf, direction}
	if err := fileTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases name and joins its words with single underscores,
// dropping everything that is not a letter or digit
func sanitizeName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return r
			}
			return -1
		}, w)
	}
	var kept []string
	for _, w := range words {
		if w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, "_")
}

// ListMigrations returns the sorted base names (without .up.sql) of the
// migrations in a directory. A missing directory has none.
func ListMigrations(migrationsDir string) ([]string, error) {
	bases, err := listFS(os.DirFS(migrationsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	return bases, err
}

// ListEmbedded lists the migrations compiled into fsys
func ListEmbedded(fsys fs.FS) ([]string, error) {
	return listFS(fsys)
}

func listFS(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	bases := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)
	return bases, nil
}
