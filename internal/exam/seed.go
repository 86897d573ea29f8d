package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a test definition before it is stored.
func Validate(t Test) error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("test %q: %w", t.ID, err)
	}
	sections := map[string]struct{}{}
	for _, s := range t.Sections {
		sections[s.ID] = struct{}{}
	}
	seen := map[string]struct{}{}
	for _, q := range t.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("test %q: duplicate question id %q", t.ID, q.ID)
		}
		seen[q.ID] = struct{}{}
		if _, ok := sections[q.SectionID]; !ok && len(sections) > 0 {
			return fmt.Errorf("test %q: question %q references unknown section %q", t.ID, q.ID, q.SectionID)
		}
	}
	return nil
}

// LoadSeedFile reads a JSON array of tests and stores each one.
func LoadSeedFile(ctx context.Context, store Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var tests []Test
	if err := json.Unmarshal(raw, &tests); err != nil {
		return 0, fmt.Errorf("decode seed %s: %w", path, err)
	}
	for i, t := range tests {
		if err := Validate(t); err != nil {
			return i, err
		}
		if err := store.PutTest(ctx, t); err != nil {
			return i, fmt.Errorf("store test %q: %w", t.ID, err)
		}
	}
	return len(tests), nil
}
