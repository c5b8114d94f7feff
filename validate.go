package streamchat

import "fmt"

// Validate checks that every message in history carries a known role.
// Message content is passed through as-is; the backend owns its semantics.
func Validate(history []Message) error {
	for i, msg := range history {
		if !msg.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q: %w", i, msg.Role, ErrValidation)
		}
	}
	return nil
}
