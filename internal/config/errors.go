package config

import "errors"

var (
	// ErrMissingRequired is returned when a required env var is unset.
	ErrMissingRequired = errors.New("config: missing required environment variable")

	// ErrInvalidMapping is returned when a *_PROJECT_MAPPINGS value isn't
	// valid JSON matching the expected array shape.
	ErrInvalidMapping = errors.New("config: invalid project mapping JSON")

	// ErrFileRead is returned when the -config override file can't be read.
	ErrFileRead = errors.New("config: failed to read config file")

	// ErrFileParse is returned when the -config override file isn't valid YAML.
	ErrFileParse = errors.New("config: failed to parse config file")
)
