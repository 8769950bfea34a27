// Package errors provides structured error types for the asset runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: the asset path, requested
// and stored Go type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
//		AssetPath("textures/grass.png").
//		GoType("*texture.Texture").
//		StoredType("*model.Mesh").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NoImporter("models/tree.xyz", ".xyz")
//	err := errors.OutOfRange("models/tree.obj", 4, 2)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind are equal,
// which lets callers branch on error category without string comparison.
//
// Recoverable failures (bad files, missing importers, type mismatches) are
// returned as *Error values. Lifecycle contract violations (negative
// reference counts, instance ID overflow) panic instead: they indicate
// incorrect caller code, not runtime conditions worth recovering from.
package errors
