package services

import (
	"errors"
	"fmt"
)

// ValidationError rejects a whole request before any file is processed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrNoFilesProvided         = &ValidationError{Message: "No files provided"}
	ErrNoFilesSelected         = &ValidationError{Message: "No files selected"}
	ErrUnsupportedOutputFormat = &ValidationError{Message: "Unsupported output format"}

	ErrLibraryUnavailable = errors.New("3D conversion service is not available. Please try again later.")
	ErrArtifactNotFound   = errors.New("artifact not found")

	errInvalidMesh = errors.New("invalid mesh format")
	errCodecPanic  = errors.New("mesh library failed unexpectedly")
)

// ConversionErrorKind classifies a failed conversion.
type ConversionErrorKind int

const (
	LoadFailure ConversionErrorKind = iota + 1
	UnsupportedMeshShape
	ExportFailure
	KnownDependencyIncompatibility
)

func (k ConversionErrorKind) String() string {
	switch k {
	case LoadFailure:
		return "load_failure"
	case UnsupportedMeshShape:
		return "unsupported_mesh_shape"
	case ExportFailure:
		return "export_failure"
	case KnownDependencyIncompatibility:
		return "dependency_incompatibility"
	default:
		return "unknown"
	}
}

// ConversionError is returned by Converter.Convert. It unwraps to the mesh
// library's error.
type ConversionError struct {
	Kind ConversionErrorKind
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Kind == KnownDependencyIncompatibility {
		return fmt.Sprintf("Incompatible mesh format version detected. "+
			"Please re-export the model as glTF 2.x, PLY 1.0 or COLLADA 1.4/1.5. Error: %v", e.Err)
	}
	return fmt.Sprintf("Conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
