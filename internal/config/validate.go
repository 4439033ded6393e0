package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Validation error codes (E200-E299)
const (
	ErrSchema     = "E200" // embedded schema failed to compile
	ErrConstraint = "E201" // value violates a schema constraint
	ErrEncode     = "E202" // config could not be encoded for validation
)

//go:embed schema.cue
var schemaSource string

// ValidationError is one rejected configuration value.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Errors collects every validation error of one configuration.
type Errors struct {
	File string
	List []ValidationError
}

// Error implements the error interface.
func (e *Errors) Error() string {
	var b strings.Builder
	if e.File != "" {
		fmt.Fprintf(&b, "invalid config %s:", e.File)
	} else {
		b.WriteString("invalid config:")
	}
	for _, v := range e.List {
		b.WriteString("\n  ")
		b.WriteString(v.Error())
	}
	return b.String()
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = err
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks cfg against the embedded schema.
// Returns all errors found (does not fail-fast), ordered by field.
func Validate(cfg *Config) []ValidationError {
	ctx, def, err := loadSchema()
	if err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error(), Code: ErrSchema}}
	}

	value := ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return []ValidationError{{Field: "config", Message: err.Error(), Code: ErrEncode}}
	}

	err = def.Unify(value).Validate(cue.Concrete(true), cue.All())
	if err == nil {
		return nil
	}

	var errs []ValidationError
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			Field:   fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrConstraint,
		}
		key := ve.Field + "\x00" + ve.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		errs = append(errs, ve)
	}
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].Field < errs[j].Field
	})
	return errs
}

// fieldPath joins a CUE error path, dropping the schema definition label.
func fieldPath(path []string) string {
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	if len(path) == 0 {
		return "config"
	}
	return strings.Join(path, ".")
}
