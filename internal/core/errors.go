package core

import "github.com/ZanzyTHEbar/errbuilder-go"

// The four fatal failure classes of closure resolution. Each carries a
// distinct errbuilder code so the CLI can map it to a stable exit code, and
// a stable message prefix so diagnostics stay greppable.

func structuralConflict(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeAlreadyExists).
		WithMsg("structural conflict: " + msg)
}

func missingDependency(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("missing dependency: " + msg)
}

func identityMismatch(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("identity mismatch: " + msg)
}

func auxiliaryViolation(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("auxiliary violation: " + msg)
}
