package clips

import (
	"errors"
	"fmt"
)

// DefaultMax is the highest taunt number in Age of Empires II.
const DefaultMax = 105

var (
	ErrOutOfRange   = errors.New("clip out of range")
	ErrAssetMissing = errors.New("clip asset missing")
)

// ValidationError describes a rejected clip number.
type ValidationError struct {
	Clip int
	Max  int
	// Path is the expected asset location; set for ErrAssetMissing.
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrAssetMissing) {
		return fmt.Sprintf("clip %d: %v: %s", e.Clip, e.Err, e.Path)
	}
	return fmt.Sprintf("clip %d: %v [1, %d]", e.Clip, e.Err, e.Max)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validator checks a clip number against the valid range and the asset store.
type Validator struct {
	store   Store
	maxClip int
}

func NewValidator(store Store, maxClip int) *Validator {
	if maxClip <= 0 {
		maxClip = DefaultMax
	}
	return &Validator{store: store, maxClip: maxClip}
}

func (v *Validator) Max() int { return v.maxClip }

// Validate returns the asset path for clip, or a *ValidationError.
func (v *Validator) Validate(clip int) (string, error) {
	if clip < 1 || clip > v.maxClip {
		return "", &ValidationError{Clip: clip, Max: v.maxClip, Err: ErrOutOfRange}
	}
	path := v.store.Path(clip)
	if !v.store.Exists(clip) {
		return "", &ValidationError{Clip: clip, Max: v.maxClip, Path: path, Err: ErrAssetMissing}
	}
	return path, nil
}
