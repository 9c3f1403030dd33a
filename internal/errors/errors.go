// Package errors provides standardized error handling for imagenamer.
// It defines the error kinds, typed wrappers and helper functions used
// across the planner, the reference engine, the vision providers and the CLI.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
	// Join joins errors into a single error
	Join = errors.Join
)

// Common error constants for frequently occurring errors
var (
	ErrFileNotFound     = NewFileError("file not found", "", FileNotFound, nil)
	ErrFileAccess       = NewFileError("file access denied", "", FileAccessDenied, nil)
	ErrInvalidPath      = NewFileError("invalid file path", "", InvalidPath, nil)
	ErrUnsupportedType  = NewFileError("unsupported file type", "", UnsupportedFileType, nil)
	ErrInvalidConfig    = NewConfigError("invalid configuration", "", InvalidConfig, nil)
	ErrInvalidProvider  = NewConfigError("invalid provider", "", InvalidProvider, nil)
	ErrMissingAPIKey    = NewConfigError("missing credentials", "", MissingCredentials, nil)
	ErrMalformedRef     = NewReferenceError("malformed reference", "", 0, MalformedReference, nil)
	ErrCacheCorrupt     = NewCacheError("corrupt cache entry", "", nil)
	ErrProviderResponse = NewProviderError("unusable provider response", "", "", nil)
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	FileExists
	FileOperationFailed
	UnsupportedFileType
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	InvalidProvider
	MissingCredentials
	// Provider error kinds
	ProviderFailed
	// Reference error kinds
	MalformedReference
	// Cache error kinds
	CacheCorrupt
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// ReferenceError represents a Markdown reference that could not be
// rewritten. It is recoverable: the reference is left untouched.
type ReferenceError struct {
	ApplicationError
	document string
	line     int
}

// NewReferenceError creates a new reference error
func NewReferenceError(msg string, document string, line int, kind ErrorKind, err error) *ReferenceError {
	return &ReferenceError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		document: document,
		line:     line,
	}
}

// Error returns the reference error message
func (e *ReferenceError) Error() string {
	if e.document != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s:%d: %v", e.msg, e.document, e.line, e.err)
		}
		return fmt.Sprintf("%s: %s:%d", e.msg, e.document, e.line)
	}
	return e.ApplicationError.Error()
}

// Document returns the Markdown document holding the reference
func (e *ReferenceError) Document() string {
	return e.document
}

// Line returns the 1-based line of the reference
func (e *ReferenceError) Line() int {
	return e.line
}

// ProviderError represents a failed vision model call
type ProviderError struct {
	ApplicationError
	provider string
	model    string
}

// NewProviderError creates a new provider error
func NewProviderError(msg string, provider string, model string, err error) *ProviderError {
	return &ProviderError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: ProviderFailed,
		},
		provider: provider,
		model:    model,
	}
}

// Error returns the provider error message
func (e *ProviderError) Error() string {
	if e.provider != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s/%s: %v", e.msg, e.provider, e.model, e.err)
		}
		return fmt.Sprintf("%s: %s/%s", e.msg, e.provider, e.model)
	}
	return e.ApplicationError.Error()
}

// Provider returns the provider name
func (e *ProviderError) Provider() string {
	return e.provider
}

// Model returns the model name
func (e *ProviderError) Model() string {
	return e.model
}

// CacheError represents errors related to cache entries
type CacheError struct {
	ApplicationError
	key string
}

// NewCacheError creates a new cache error
func NewCacheError(msg string, key string, err error) *CacheError {
	return &CacheError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: CacheCorrupt,
		},
		key: key,
	}
}

// Error returns the cache error message
func (e *CacheError) Error() string {
	if e.key != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.key, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.key)
	}
	return e.ApplicationError.Error()
}

// Key returns the cache key
func (e *CacheError) Key() string {
	return e.key
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: Unknown,
	}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		err:  err,
		kind: Unknown,
	}
}

// KindOf returns the kind of the first kinded error in err's chain.
func KindOf(err error) ErrorKind {
	for err != nil {
		if k, ok := err.(interface{ Kind() ErrorKind }); ok && k.Kind() != Unknown {
			return k.Kind()
		}
		err = errors.Unwrap(err)
	}
	return Unknown
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileNotFound
	}
	return false
}

// IsFileAccessDenied checks if the error is a file access denied error
func IsFileAccessDenied(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileAccessDenied
	}
	return false
}

// IsFileExists checks if the error reports an occupied rename target
func IsFileExists(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileExists
	}
	return false
}

// IsUnsupportedFileType checks if the error is an unsupported file type error
func IsUnsupportedFileType(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == UnsupportedFileType
	}
	return false
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsInvalidProvider checks if the error names an unknown provider
func IsInvalidProvider(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidProvider
	}
	return false
}

// IsMissingCredentials checks if the error reports a missing API key
func IsMissingCredentials(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == MissingCredentials
	}
	return false
}

// IsProviderError checks if the error is a provider error
func IsProviderError(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr)
}

// IsReferenceError checks if the error is a reference error
func IsReferenceError(err error) bool {
	var refErr *ReferenceError
	return errors.As(err, &refErr)
}

// IsCacheCorrupt checks if the error is a corrupt cache entry
func IsCacheCorrupt(err error) bool {
	var cacheErr *CacheError
	return errors.As(err, &cacheErr)
}
