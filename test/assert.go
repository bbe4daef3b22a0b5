package test

import (
	"errors"
	"reflect"
	"testing"
)

// AssertEqual compares with reflect.DeepEqual and reports whether the values
// were equal.
func AssertEqual(t *testing.T, expected, actual any) bool {
	t.Helper()

	if !reflect.DeepEqual(expected, actual) {
		t.Errorf(""+
			"Not equal: \n"+
			"Expected: %v\n"+
			"Actual: %v", expected, actual)
		return false
	}

	return true
}

func AssertTrue(t *testing.T, value bool, msg string) bool {
	t.Helper()

	if !value {
		t.Errorf("Expected true: %s", msg)
		return false
	}

	return true
}

// AssertNoError stops the test on err.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func AssertErrorIs(t *testing.T, err, target error) bool {
	t.Helper()

	if err == nil || !errors.Is(err, target) {
		t.Errorf("Expected error %v, got %v", target, err)
		return false
	}

	return true
}
