package manager

import (
	"errors"
	"fmt"
)

// LoadErrorKind classifies why a model failed to load.
type LoadErrorKind string

const (
	LoadNotFound              LoadErrorKind = "not_found"
	LoadUnsupportedFormat     LoadErrorKind = "unsupported_format"
	LoadAmbiguousArchive      LoadErrorKind = "ambiguous_archive"
	LoadInsufficientResources LoadErrorKind = "insufficient_resources"
	LoadRuntimeFault          LoadErrorKind = "runtime_fault"
)

// LoadError is returned by Load. Its message names the cause in terms a
// user can act on.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	var msg string
	switch e.Kind {
	case LoadNotFound:
		msg = "model file not found: " + e.Path
	case LoadUnsupportedFormat:
		msg = "unsupported model format: " + e.Path
	case LoadAmbiguousArchive:
		msg = "archive must contain exactly one model file: " + e.Path
	case LoadInsufficientResources:
		msg = "not enough memory to load model: " + e.Path
	default:
		msg = "model runtime failed to load " + e.Path
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(kind LoadErrorKind, path string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Err: err}
}

// IsLoadError reports whether err is a LoadError of the given kind.
func IsLoadError(err error, kind LoadErrorKind) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == kind
}

// GenerationErrorKind classifies generation failures.
type GenerationErrorKind string

const (
	GenBusy         GenerationErrorKind = "busy"
	GenNotReady     GenerationErrorKind = "not_ready"
	GenRuntimeFault GenerationErrorKind = "runtime_fault"
	// GenCancelled is a normal terminal state and is never shown to users
	// as a failure.
	GenCancelled GenerationErrorKind = "cancelled"
)

// GenerationError is returned by Generate or carried by a failed Outcome.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case GenBusy:
		return "model is busy with another generation"
	case GenNotReady:
		return "no model is ready"
	case GenCancelled:
		return "generation cancelled"
	}
	if e.Err != nil {
		return "generation failed: " + e.Err.Error()
	}
	return "generation failed"
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrBusy is returned when a session already has an active stream.
var ErrBusy = &GenerationError{Kind: GenBusy}

// ErrNotReady is returned when generating against a session that is not Ready.
var ErrNotReady = &GenerationError{Kind: GenNotReady}

// IsBusy reports whether err indicates the session was busy.
func IsBusy(err error) bool {
	return isGenKind(err, GenBusy)
}

// IsNotReady reports whether err indicates there was no ready session.
func IsNotReady(err error) bool {
	return isGenKind(err, GenNotReady)
}

func isGenKind(err error, kind GenerationErrorKind) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Kind == kind
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. a
// binary built without llama.cpp support).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

// errStopped is returned from the token callback to end a generation early.
var errStopped = errors.New("generation stopped")

func panicError(r any) error {
	return fmt.Errorf("runtime panic: %v", r)
}
