// Package schema validates persisted records against the CUE definitions in
// schema.cue before they are accepted into memory or written to storage.
package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/book-expert/tts-editor/internal/core"
)

// ErrDuplicateID indicates a list of records that repeats an id.
var ErrDuplicateID = errors.New("duplicate id")

//go:embed schema.cue
var schemaSource string

// Definition names one CUE definition of schema.cue.
type Definition string

// Record definitions.
const (
	Settings Definition = "#Settings"
	Project  Definition = "#Project"
	Bundle   Definition = "#Bundle"
)

// Validator checks JSON documents against the compiled schema.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate checks raw JSON against the definition. Any mismatch, including
// malformed JSON, is reported as core.ErrValidation.
func (v *Validator) Validate(def Definition, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	definition := v.schema.LookupPath(cue.ParsePath(string(def)))
	if !definition.Exists() {
		return fmt.Errorf("unknown schema definition %s", def)
	}

	value := v.ctx.CompileBytes(data, cue.Filename(string(def)+".json"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %s: %s", core.ErrValidation, def, describe(err))
	}

	unified := definition.Unify(value)

	err := unified.Validate(cue.Concrete(true))
	if err != nil {
		return fmt.Errorf("%w: %s: %s", core.ErrValidation, def, describe(err))
	}

	err = checkUniqueIDs(def, unified)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrValidation, def, err)
	}

	return nil
}

// checkUniqueIDs rejects records whose id lists repeat an id: segments within
// a project, projects within a bundle and entries of the project index.
func checkUniqueIDs(def Definition, value cue.Value) error {
	switch def {
	case Project:
		return uniqueIDs(value, "textData")
	case Settings:
		return uniqueIDs(value, "projectInfo")
	case Bundle:
		err := uniqueIDs(value, "settings.projectInfo")
		if err != nil {
			return err
		}

		err = uniqueIDs(value, "projects")
		if err != nil {
			return err
		}

		return eachElement(value, "projects", func(index int, project cue.Value) error {
			projectErr := uniqueIDs(project, "textData")
			if projectErr != nil {
				return fmt.Errorf("projects[%d]: %w", index, projectErr)
			}

			return nil
		})
	default:
		return nil
	}
}

func uniqueIDs(value cue.Value, path string) error {
	seen := make(map[string]int)

	return eachElement(value, path, func(index int, element cue.Value) error {
		id, err := element.LookupPath(cue.ParsePath("id")).String()
		if err != nil {
			return fmt.Errorf("%s[%d].id: %s", path, index, describe(err))
		}

		first, duplicate := seen[id]
		if duplicate {
			return fmt.Errorf("%w: %s[%d] repeats the id %q of %s[%d]", ErrDuplicateID, path, index, id, path, first)
		}

		seen[id] = index

		return nil
	})
}

func eachElement(value cue.Value, path string, fn func(int, cue.Value) error) error {
	list := value.LookupPath(cue.ParsePath(path))
	if !list.Exists() {
		return nil
	}

	iter, err := list.List()
	if err != nil {
		return fmt.Errorf("%s: %s", path, describe(err))
	}

	for index := 0; iter.Next(); index++ {
		err = fn(index, iter.Value())
		if err != nil {
			return err
		}
	}

	return nil
}

// ValidateValue marshals v to JSON and validates the result.
func (v *Validator) ValidateValue(def Definition, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", def, err)
	}

	err = v.Validate(def, data)
	if err != nil {
		return nil, err
	}

	return data, nil
}

func describe(err error) string {
	return cueerrors.Details(err, nil)
}
