package soundcore

import (
	"github.com/tphakala/soundpool-go/internal/errors"
)

// Component identifier for soundcore errors
const ComponentSoundCore = "soundcore"

// Error categories specific to soundcore
var (
	// ErrEntryNotFound is returned when a sound name or id has no catalog entry
	ErrEntryNotFound = errors.New(nil).
		Component(ComponentSoundCore).
		Category(errors.CategoryNotFound).
		Context("resource", "sound_entry").
		Build()

	// ErrPoolExhausted is returned when no channel can be produced for a play request
	ErrPoolExhausted = errors.New(nil).
		Component(ComponentSoundCore).
		Category(errors.CategoryPoolExhausted).
		Context("resource", "channel_pool").
		Build()

	// ErrNotInitialized is returned when operations are attempted on a disabled manager
	ErrNotInitialized = errors.New(nil).
		Component(ComponentSoundCore).
		Category(errors.CategoryState).
		Context("resource", "sound_manager").
		Build()

	// ErrInvalidConfig is returned when manager construction parameters are unusable
	ErrInvalidConfig = errors.New(nil).
		Component(ComponentSoundCore).
		Category(errors.CategoryConfiguration).
		Context("resource", "manager_config").
		Build()

	// ErrInvalidArgument is returned when an operation receives an out-of-range value
	ErrInvalidArgument = errors.New(nil).
		Component(ComponentSoundCore).
		Category(errors.CategoryValidation).
		Context("resource", "operation_argument").
		Build()
)
