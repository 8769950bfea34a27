package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the asset lifecycle the error occurred
type Phase string

const (
	PhaseImport   Phase = "import"   // file import and decoding
	PhaseLoad     Phase = "load"     // cache lookup and type resolution
	PhaseDispose  Phase = "dispose"  // disposal and queue draining
	PhaseRegistry Phase = "registry" // identity registry operations
	PhaseWatch    Phase = "watch"    // filesystem change handling
)

// Kind categorizes the error
type Kind string

const (
	KindAlreadyDisposed Kind = "already_disposed"
	KindReleaseWhileRef Kind = "release_while_referenced"
	KindManualDisposal  Kind = "manual_disposal"
	KindMissingFile     Kind = "missing_file"
	KindNoImporter      Kind = "no_importer"
	KindImporterFailed  Kind = "importer_failed"
	KindNoMainResource  Kind = "no_main_resource"
	KindNotFound        Kind = "not_found"
	KindTypeMismatch    Kind = "type_mismatch"
	KindDuplicateAsset  Kind = "duplicate_asset"
	KindOutOfRange      Kind = "out_of_range"
	KindInvalidInput    Kind = "invalid_input"
	KindRegistration    Kind = "registration"
)

// Error is the structured error type used throughout the asset runtime
type Error struct {
	Cause      error
	Phase      Phase
	Kind       Kind
	AssetPath  string
	GoType     string
	StoredType string
	Detail     string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.AssetPath != "" {
		b.WriteString(" at ")
		b.WriteString(e.AssetPath)
	}

	if e.GoType != "" || e.StoredType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.StoredType != "" {
			b.WriteString("requested ")
			b.WriteString(e.GoType)
			b.WriteString(", stored ")
			b.WriteString(e.StoredType)
		} else if e.GoType != "" {
			b.WriteString("requested ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("stored ")
			b.WriteString(e.StoredType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.StoredType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// AssetPath sets the asset path the error refers to
func (b *Builder) AssetPath(path string) *Builder {
	b.err.AssetPath = path
	return b
}

// GoType sets the requested Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// StoredType sets the stored resource type name
func (b *Builder) StoredType(t string) *Builder {
	b.err.StoredType = t
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AlreadyDisposed creates an error for operating on a dead resource
func AlreadyDisposed(what string, id uint64) *Error {
	return &Error{
		Phase:  PhaseDispose,
		Kind:   KindAlreadyDisposed,
		Detail: fmt.Sprintf("%s (instance %d) is already disposed", what, id),
	}
}

// ReleaseWhileReferenced creates an error for disposing with outstanding references
func ReleaseWhileReferenced(what string, refs uint32) *Error {
	return &Error{
		Phase:  PhaseDispose,
		Kind:   KindReleaseWhileRef,
		Detail: fmt.Sprintf("%s still has %d outstanding reference(s)", what, refs),
	}
}

// ManualDisposal creates an error for directly destroying a manager-owned asset
func ManualDisposal(path string) *Error {
	return &Error{
		Phase:     PhaseDispose,
		Kind:      KindManualDisposal,
		AssetPath: path,
		Detail:    "external assets are destroyed by releasing references, not directly",
	}
}

// MissingFile creates an error for a source file that does not exist
func MissingFile(path string, cause error) *Error {
	return &Error{
		Phase:     PhaseImport,
		Kind:      KindMissingFile,
		AssetPath: path,
		Cause:     cause,
	}
}

// NoImporter creates an error for an unhandled file extension
func NoImporter(path, ext string) *Error {
	return &Error{
		Phase:     PhaseImport,
		Kind:      KindNoImporter,
		AssetPath: path,
		Detail:    fmt.Sprintf("no importer registered for %q", ext),
	}
}

// ImporterFailed wraps an error raised by an importer
func ImporterFailed(path string, cause error) *Error {
	return &Error{
		Phase:     PhaseImport,
		Kind:      KindImporterFailed,
		AssetPath: path,
		Cause:     cause,
	}
}

// NoMainResource creates an error for an importer that produced no main resource
func NoMainResource(path string) *Error {
	return &Error{
		Phase:     PhaseImport,
		Kind:      KindNoMainResource,
		AssetPath: path,
		Detail:    "importer completed without setting a main resource",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, key string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, key),
	}
}

// TypeMismatch creates an error for a requested/stored type conflict
func TypeMismatch(path, goType, storedType string) *Error {
	return &Error{
		Phase:      PhaseLoad,
		Kind:       KindTypeMismatch,
		AssetPath:  path,
		GoType:     goType,
		StoredType: storedType,
	}
}

// DuplicateAsset creates an error for import-context misuse
func DuplicateAsset(path, detail string) *Error {
	return &Error{
		Phase:     PhaseImport,
		Kind:      KindDuplicateAsset,
		AssetPath: path,
		Detail:    detail,
	}
}

// OutOfRange creates an error for a sub-asset index past the record's end
func OutOfRange(path string, index, count int) *Error {
	return &Error{
		Phase:     PhaseLoad,
		Kind:      KindOutOfRange,
		AssetPath: path,
		Detail:    fmt.Sprintf("sub-asset index %d out of range (record has %d)", index, count),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates an importer registration error
func Registration(ext string, cause error) *Error {
	return &Error{
		Phase:  PhaseImport,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register importer for %q", ext),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
