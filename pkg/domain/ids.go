package domain

import (
	"strings"
	"unicode/utf8"
)

// SystemPersona is the reserved persona for process-wide configuration.
const SystemPersona = "_system"

// MaxNameLen bounds persona and app names; they become path segments.
const MaxNameLen = 255

// ValidateName checks a persona or app identifier. Names are used as
// file system path segments, so separators, NUL and dot segments are
// rejected. A leading "." is reserved for temp files.
func ValidateName(kind, name string) error {
	switch {
	case name == "":
		return ErrInvalidArgument.WithDetailsf("%s is empty", kind)
	case len(name) > MaxNameLen:
		return ErrInvalidArgument.WithDetailsf("%s longer than %d bytes", kind, MaxNameLen)
	case strings.HasPrefix(name, "."):
		return ErrInvalidArgument.WithDetailsf("%s %q starts with '.'", kind, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrInvalidArgument.WithDetailsf("%s %q contains a path separator or NUL", kind, name)
	case !utf8.ValidString(name):
		return ErrInvalidArgument.WithDetailsf("%s %q is not valid UTF-8", kind, name)
	}
	return nil
}

// ValidateKey checks a key. Keys are opaque but must be non-empty valid
// UTF-8: JSON encoding would replace invalid bytes with U+FFFD and the
// key would come back as a different one after a reload.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return ErrInvalidArgument.WithDetails("key is empty")
	case !utf8.ValidString(key):
		return ErrInvalidArgument.WithDetailsf("key %q is not valid UTF-8", key)
	}
	return nil
}

// ValidateAddress validates a full persona/app/key address.
func ValidateAddress(persona, app, key string) error {
	if err := ValidateName("persona", persona); err != nil {
		return err
	}
	if err := ValidateName("app", app); err != nil {
		return err
	}
	return ValidateKey(key)
}
