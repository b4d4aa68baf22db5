package engine

import (
	"github.com/tphakala/soundpool-go/internal/errors"
)

// Component identifier for engine errors
const ComponentEngine = "engine"

// Error categories specific to the audio engine
var (
	// ErrUnsupportedEngine is returned when the configured engine name is unknown
	ErrUnsupportedEngine = errors.New(nil).
		Component(ComponentEngine).
		Category(errors.CategoryConfiguration).
		Context("resource", "engine_backend").
		Build()

	// ErrDeviceNotFound is returned when the configured output device does not exist
	ErrDeviceNotFound = errors.New(nil).
		Component(ComponentEngine).
		Category(errors.CategoryNotFound).
		Context("resource", "output_device").
		Build()

	// ErrBackendClosed is returned when units are requested from a closed backend
	ErrBackendClosed = errors.New(nil).
		Component(ComponentEngine).
		Category(errors.CategoryState).
		Context("resource", "engine_backend").
		Build()

	// ErrNoClip is returned when a unit is assigned a nil or empty clip
	ErrNoClip = errors.New(nil).
		Component(ComponentEngine).
		Category(errors.CategoryValidation).
		Context("resource", "clip").
		Build()
)
