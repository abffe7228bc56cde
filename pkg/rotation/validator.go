// Package rotation defines the pluggable validation hooks invoked at the two
// checkpoints of a credential rotation.
//
// A Validator is called once before the new value is switched in (stage
// "before", no plaintext available) and once after (stage "after", plaintext
// available for format and liveness checks). The registry wraps every call
// in a panic-converting boundary, so a misbehaving validator fails the
// rotation instead of crashing the process.
package rotation

import (
	"context"

	"github.com/systmms/credvault/pkg/secretref"
)

// Stage identifies which rotation checkpoint a validation call belongs to.
type Stage string

const (
	// StageBefore runs before any mutation; it sanity-checks that the
	// currently active credential is still usable for in-flight consumers.
	StageBefore Stage = "before"

	// StageAfter runs once the candidate version has been written; the new
	// plaintext is available for inspection.
	StageAfter Stage = "after"
)

// Context carries everything a validator may inspect. Value is nil at the
// before stage; at the after stage it points at the candidate plaintext.
type Context struct {
	Provider         string
	Stage            Stage
	Scope            secretref.Scope
	Name             string
	CandidateVersion int
	PreviousVersion  int
	Value            *string
}

// Detail is a short human-readable note about what a checkpoint verified.
// It ends up in the RotationReport; it must never contain secret material.
type Detail string

// Validator is the pluggable rotation check. Returning an error fails the
// checkpoint: at the before stage the rotation aborts untouched, at the
// after stage the registry rolls the rotation back.
type Validator interface {
	Validate(ctx context.Context, vc Context) (Detail, error)
}

// Func adapts a plain function into a Validator.
type Func func(ctx context.Context, vc Context) (Detail, error)

// Validate implements Validator.
func (f Func) Validate(ctx context.Context, vc Context) (Detail, error) {
	return f(ctx, vc)
}

// Chain runs validators in order and fails on the first error. The details
// of the final validator win; earlier details are dropped.
type Chain []Validator

// Validate implements Validator.
func (c Chain) Validate(ctx context.Context, vc Context) (Detail, error) {
	var detail Detail
	for _, v := range c {
		d, err := v.Validate(ctx, vc)
		if err != nil {
			return "", err
		}
		if d != "" {
			detail = d
		}
	}
	return detail, nil
}
