package docmap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docmap/docmap/wire"
)

// DecodeError reports that no direct accept, coercer, or fallback decoder
// matched a wire value. It aborts the decode of the whole instance; partial
// decode is not supported.
type DecodeError struct {
	Path     string      // dot path from the root instance; "" at the root
	Expected []wire.Kind // kinds the schema accepts directly
	Value    any         // offending wire value
	Cause    error
}

func (e *DecodeError) Error() string {
	kinds := make([]string, len(e.Expected))
	for i, k := range e.Expected {
		kinds[i] = k.String()
	}
	at := e.Path
	if at == "" {
		at = "(root)"
	}
	msg := fmt.Sprintf("docmap: cannot decode %s at %s: expected one of [%s], got %v",
		wire.KindOf(e.Value), at, strings.Join(kinds, " "), e.Value)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// EncodeError reports a safe-encode type mismatch or a requireEncode
// finalizer firing on an unencodable value.
type EncodeError struct {
	Path   string
	Reason string
	Value  any
}

func (e *EncodeError) Error() string {
	at := e.Path
	if at == "" {
		at = "(root)"
	}
	return fmt.Sprintf("docmap: cannot encode %T at %s: %s", e.Value, at, e.Reason)
}

// ValidationError aggregates the outcome of a strict validation run. Primary
// is the first collected violation; Secondary carries the rest in declaration
// order. No violation is ever silently dropped.
type ValidationError struct {
	Primary   error
	Secondary []error
}

func (e *ValidationError) Error() string {
	if len(e.Secondary) == 0 {
		return "docmap: validation failed: " + e.Primary.Error()
	}
	return fmt.Sprintf("docmap: validation failed: %s (and %d more)", e.Primary, len(e.Secondary))
}

func (e *ValidationError) Unwrap() error { return e.Primary }

// All returns every collected violation, primary first.
func (e *ValidationError) All() []error {
	out := make([]error, 0, 1+len(e.Secondary))
	out = append(out, e.Primary)
	out = append(out, e.Secondary...)
	return out
}

// ConfigurationError is a programmer error raised fail-fast at schema build or
// model registration time, never during normal decode/encode.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "docmap: configuration: " + e.Msg }

func configErrf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// ErrSkipElement is the marker an element schema returns to ask an array
// decode to drop that element instead of failing the whole array.
var ErrSkipElement = errors.New("docmap: skip element")

// ErrInvocationAborted resolves the futures of options that were still queued
// or parked when an earlier behavior block failed.
var ErrInvocationAborted = errors.New("docmap: option invocation aborted")

// AsDecodeError extracts a DecodeError using errors.As.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// AsEncodeError extracts an EncodeError using errors.As.
func AsEncodeError(err error) (*EncodeError, bool) {
	var ee *EncodeError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// AsValidationError extracts a ValidationError using errors.As.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsConfigurationError extracts a ConfigurationError using errors.As.
func AsConfigurationError(err error) (*ConfigurationError, bool) {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// prefixPath rebases a child path under base ("a" + "b.c" -> "a.b.c").
func prefixPath(base, child string) string {
	if base == "" {
		return child
	}
	if child == "" {
		return base
	}
	return base + "." + child
}

// rebaseError pushes base onto the path of decode/encode errors coming out of
// a child schema so callers see the full dot path from the root.
func rebaseError(base string, err error) error {
	if err == nil || base == "" {
		return err
	}
	if de, ok := AsDecodeError(err); ok {
		return &DecodeError{Path: prefixPath(base, de.Path), Expected: de.Expected, Value: de.Value, Cause: de.Cause}
	}
	if ee, ok := AsEncodeError(err); ok {
		return &EncodeError{Path: prefixPath(base, ee.Path), Reason: ee.Reason, Value: ee.Value}
	}
	return err
}
