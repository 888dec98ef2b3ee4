package types

import "log/slog"

// redactedPlaceholder is the string used to replace secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds sensitive material such as the service-account private
// key or the storage service-role key. Every formatting path (fmt verbs, JSON,
// slog attributes) renders the redacted placeholder; only Unmask returns the
// plaintext.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString keeps %#v from printing the raw value.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

// LogValue implements slog.LogValuer so secrets passed as log attributes are
// redacted by every handler.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Call sites should be
// limited to the places that hand the value to a signer or HTTP header.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret value was configured.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
