package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no country prefix.
// Affiliates register with Indonesian numbers (08xx...).
const DefaultRegion = "ID"

// ValidationResult contains the result of phone number validation
type ValidationResult struct {
	IsValid      bool   `json:"is_valid"`
	E164Format   string `json:"e164_format"`
	CountryCode  string `json:"country_code"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Validate parses and validates a phone number, defaulting to the Indonesian
// region for numbers without a country prefix
func Validate(number string) *ValidationResult {
	parsed, err := phonenumbers.Parse(number, DefaultRegion)
	if err != nil {
		return &ValidationResult{
			IsValid:      false,
			ErrorMessage: fmt.Sprintf("failed to parse number: %v", err),
		}
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return &ValidationResult{
			IsValid:      false,
			ErrorMessage: "number is not valid",
		}
	}

	return &ValidationResult{
		IsValid:     true,
		E164Format:  phonenumbers.Format(parsed, phonenumbers.E164),
		CountryCode: phonenumbers.GetRegionCodeForNumber(parsed),
	}
}

// Normalize returns the E.164 form of a valid number, or an error
func Normalize(number string) (string, error) {
	result := Validate(number)
	if !result.IsValid {
		return "", fmt.Errorf("invalid phone number %q: %s", number, result.ErrorMessage)
	}
	return result.E164Format, nil
}
