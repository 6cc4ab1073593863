package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// NotFoundError marks a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func NewNotFoundError(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func (err NotFoundError) Error() string {
	if err.Key == "" {
		return err.Entity + " not found"
	}
	return err.Entity + " " + err.Key + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// StoreError wraps an underlying persistence failure. It is never retried by the engines.
type StoreError struct {
	Err error
}

func NewStoreError(err error) error {
	if err == nil {
		return nil
	}
	if IsStore(err) {
		return err
	}
	return &StoreError{Err: err}
}

func (err StoreError) Error() string {
	return "store failure: " + err.Err.Error()
}

func (err StoreError) Unwrap() error { return err.Err }

func IsStore(err error) bool {
	var sErr *StoreError
	return errors.As(err, &sErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
