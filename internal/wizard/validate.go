package wizard

import (
	"fmt"
	"regexp"
)

// dottedQuadPattern accepts four dot-separated numeric groups. Octet range
// is deliberately not checked; semantic correctness of the address is left
// to the operator.
var dottedQuadPattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// networkIDLength is the fixed length of an overlay network identifier.
const networkIDLength = 16

// ValidateDottedQuad accepts any four dot-separated numeric groups.
func ValidateDottedQuad(value string) error {
	if !dottedQuadPattern.MatchString(value) {
		return fmt.Errorf("enter an address as four dot-separated numbers (e.g. 192.168.1.20)")
	}
	return nil
}

// ValidateNetworkID accepts exactly 16 characters of any kind.
func ValidateNetworkID(value string) error {
	if len(value) != networkIDLength {
		return fmt.Errorf("network ID must be exactly %d characters, got %d", networkIDLength, len(value))
	}
	return nil
}

// ValidateNotEmpty rejects empty input.
func ValidateNotEmpty(value string) error {
	if value == "" {
		return fmt.Errorf("a value is required")
	}
	return nil
}
