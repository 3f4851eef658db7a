package meta

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingExportDir is returned when client emission is attempted without an export directory.
	ErrMissingExportDir = errors.New("missing export dir")
	// ErrAggregateMutated is returned when the aggregate changed between client and dispatch emission.
	ErrAggregateMutated = errors.New("aggregate changed between client and dispatch emission")
	// ErrNoModule is returned when no go.mod can be found above the scan root.
	ErrNoModule = errors.New("no go.mod found")
)

// ParseError reports a scanned file that is not valid Go source.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse file: %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError reports a generated artifact that could not be written.
type WriteError struct {
	Artifact string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write file: %s: %v", e.Artifact, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DuplicateServiceError reports two services sharing a call key.
type DuplicateServiceError struct {
	Key string
}

func (e *DuplicateServiceError) Error() string {
	return fmt.Sprintf("duplicate service name: %s", e.Key)
}

// UnsupportedMessageError reports a message marker on a type that is
// neither a struct nor a defined basic type.
type UnsupportedMessageError struct {
	Name string
	Kind string
}

func (e *UnsupportedMessageError) Error() string {
	return fmt.Sprintf("unsupported message shape: %s (%s): only structs and enumerations can be messages", e.Name, e.Kind)
}

// UnsupportedServiceError reports a service marker on a function that
// cannot be dispatched.
type UnsupportedServiceError struct {
	Name   string
	Reason string
}

func (e *UnsupportedServiceError) Error() string {
	return fmt.Sprintf("unsupported service shape: %s: %s", e.Name, e.Reason)
}

// NamespaceConflictError reports a call-tree path used both as a namespace and as a service.
type NamespaceConflictError struct {
	Path string
}

func (e *NamespaceConflictError) Error() string {
	return fmt.Sprintf("namespace conflict: %s is both a namespace and a service", e.Path)
}

// UnreachableServiceError reports a service the generated dispatch file cannot call.
type UnreachableServiceError struct {
	Key    string
	Reason string
}

func (e *UnreachableServiceError) Error() string {
	return fmt.Sprintf("unreachable service: %s: %s", e.Key, e.Reason)
}
