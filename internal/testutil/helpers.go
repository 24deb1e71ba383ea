// Package testutil provides shared helpers for property-based tests.
package testutil

import (
	"testing"

	"github.com/leanovate/gopter"
)

// DefaultTestParameters returns standard gopter parameters for property tests.
func DefaultTestParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	params.MaxSize = 100
	return params
}

// RunPropertyTest runs a single property with standard parameters.
func RunPropertyTest(t *testing.T, name string, prop gopter.Prop) {
	t.Helper()
	props := gopter.NewProperties(DefaultTestParameters())
	props.Property(name, prop)
	props.TestingRun(t)
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
