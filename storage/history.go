package storage

import "fmt"

// Package history is an append-only sequence per deployment. Labels are
// ordinal ("v1", "v2", ...) in commit order, and only the last entry may carry
// a rollout percentage.

// AppendPackage assigns the next label, clears the previous tail's rollout,
// and appends pkg. The returned slice is the new history; its last element is
// the committed package.
func AppendPackage(history []Package, pkg Package) []Package {
	if n := len(history); n > 0 {
		history[n-1].Rollout = nil
	}
	pkg.Label = fmt.Sprintf("v%d", len(history)+1)
	return append(history, pkg)
}

// ValidateHistoryReplacement guards full-history replacement. History cannot
// be cleared through replacement; ClearPackageHistory is the only path to an
// empty sequence.
func ValidateHistoryReplacement(history []Package) error {
	if len(history) == 0 {
		return NewError(ErrInvalid, "Cannot update with an empty package history")
	}
	return nil
}

// CurrentPackage returns a copy of the history tail, the package a deployment
// currently serves, or nil for an empty history.
func CurrentPackage(history []Package) *Package {
	if len(history) == 0 {
		return nil
	}
	tail := ClonePackage(history[len(history)-1])
	return &tail
}
