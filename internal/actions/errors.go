package actions

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnresolvedPlaceholder = errors.New("plan contains unresolved placeholders")

type UnknownActionError struct {
	ID string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.ID)
}

// MissingContextParamError reports a placeholder with no value. Positional
// placeholders are named "$N".
type MissingContextParamError struct {
	Key string
}

func (e *MissingContextParamError) Error() string {
	return fmt.Sprintf("missing value for placeholder %s", e.Key)
}

type ScopeViolationError struct {
	Scope   Scope
	Missing []string
}

func (e *ScopeViolationError) Error() string {
	return fmt.Sprintf("%s action requires %s", e.Scope, strings.Join(e.Missing, ", "))
}

// DynamicPlaceholderError wraps the failure of a GIT_CONFIG or GIT_EXEC
// lookup.
type DynamicPlaceholderError struct {
	Kind string
	Key  string
	Err  error
}

func (e *DynamicPlaceholderError) Error() string {
	return fmt.Sprintf("resolve {%s:%s}: %v", e.Kind, e.Key, e.Err)
}

func (e *DynamicPlaceholderError) Unwrap() error { return e.Err }

// TemplateSyntaxError reports a malformed template. Position is a byte
// offset into the template source.
type TemplateSyntaxError struct {
	Position int
	Reason   string
}

func (e *TemplateSyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at %d: %s", e.Position, e.Reason)
}
