// Package testutil provides testing utilities for FAB.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockStoreUnavailable indicates a mock registry store is unavailable.
	ErrMockStoreUnavailable = errors.New("store unavailable")

	// ErrMockGeneration indicates a mock generation service error.
	ErrMockGeneration = errors.New("generation error")

	// ErrMockValidation indicates a mock validation adapter error.
	ErrMockValidation = errors.New("validation error")

	// ErrMockSandbox indicates a mock sandbox engine error.
	ErrMockSandbox = errors.New("sandbox error")
)
