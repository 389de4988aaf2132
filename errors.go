package store

import (
	"errors"
	"fmt"
)

// ErrAlreadyConfigured indicates Configure ran more than once on a store.
var ErrAlreadyConfigured = errors.New("store already configured")

// ErrDuplicateKey indicates a slice key was registered twice.
var ErrDuplicateKey = errors.New("slice key already registered")

// ErrUnknownKey indicates an operation referenced a slice key that is not
// registered.
var ErrUnknownKey = errors.New("slice key not registered")

// ErrExtensionsConfigured indicates store-wide extensions were supplied more
// than once.
var ErrExtensionsConfigured = errors.New("extensions already configured")

var errNilReducer = errors.New("reducer must not be nil")

var errDuplicateUndo = errors.New("at most one undo-capture extension may be active")

// ConfigurationError reports store misuse detected synchronously at the call
// site: duplicate slice keys, repeated configuration, repeated store-wide
// extension setup.
type ConfigurationError struct {
	Op  string
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Key != "" {
		return fmt.Sprintf("store: %s key=%q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UndoUnavailableError reports an Undo call on a container without an
// installed undo-capture extension.
type UndoUnavailableError struct {
	Container string
}

func (e *UndoUnavailableError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: undo requested on %s without an undo-capture extension", e.Container)
}

// EffectError wraps the terminal failure of a single effect subscription. The
// failure is isolated: it ends that subscription only and never reaches the
// dispatch loop or other effects.
type EffectError struct {
	SubscriptionID string
	Err            error
}

func (e *EffectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: effect %s: %v", e.SubscriptionID, e.Err)
}

func (e *EffectError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// QueryError captures projector metadata alongside the originating error.
type QueryError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *QueryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: %s projector %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapProjectorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var queryErr *QueryError
	if errors.As(err, &queryErr) {
		return err
	}
	return fmt.Errorf("store: %s projector: %w", engine, err)
}

func wrapQueryError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var queryErr *QueryError
	if errors.As(err, &queryErr) {
		if queryErr.Engine == "" {
			queryErr.Engine = engine
		}
		if queryErr.Expr == "" {
			queryErr.Expr = expr
		}
		return queryErr
	}

	return &QueryError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}

func newConfigurationError(op, key string, err error) *ConfigurationError {
	return &ConfigurationError{Op: op, Key: key, Err: err}
}
