package envelope

import "errors"

// ErrUnknownKind is returned when an envelope's "type" discriminator does
// not match any known Job Envelope variant.
var ErrUnknownKind = errors.New("envelope: unknown job kind")
