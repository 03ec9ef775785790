package security

import (
	"regexp"
	"strings"
)

var (
	// Patterns for sensitive data
	emailPattern         = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	nationalIDPattern    = regexp.MustCompile(`\b[0-9]{9,14}\b`)
	accountNumberPattern = regexp.MustCompile(`\b(CHK|SAV|BUS)-[0-9]{8}-[0-9A-F]{6}\b`)
	jwtPattern           = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
	apiKeyPattern        = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|auth)["\s:=]+["']?([a-zA-Z0-9_-]{16,})["']?`)

	// Sensitive field names
	sensitiveFields = []string{
		"password", "secret", "token", "key", "auth",
		"national_id", "nationalid", "tax_id", "ssn",
		"pin", "api_key", "apikey", "access_token", "refresh_token",
		"bearer", "credential",
	}
)

// MaskString masks sensitive patterns in a string
func MaskString(s string) string {
	s = emailPattern.ReplaceAllStringFunc(s, maskEmail)
	s = accountNumberPattern.ReplaceAllStringFunc(s, MaskAccountNumber)
	s = nationalIDPattern.ReplaceAllStringFunc(s, MaskNationalID)
	s = jwtPattern.ReplaceAllString(s, "eyJ***REDACTED***")
	s = apiKeyPattern.ReplaceAllString(s, "$1: ***REDACTED***")
	return s
}

// MaskMap masks sensitive fields in a map
func MaskMap(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{})
	for k, v := range data {
		if isSensitiveField(k) {
			masked[k] = "***REDACTED***"
			continue
		}

		switch val := v.(type) {
		case string:
			masked[k] = MaskString(val)
		case map[string]interface{}:
			masked[k] = MaskMap(val)
		case []interface{}:
			masked[k] = maskSlice(val)
		default:
			masked[k] = v
		}
	}
	return masked
}

// MaskAccountNumber keeps the type prefix and the last two hex characters
func MaskAccountNumber(number string) string {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "***"
	}
	suffix := parts[2]
	if len(suffix) > 2 {
		suffix = strings.Repeat("*", len(suffix)-2) + suffix[len(suffix)-2:]
	}
	return parts[0] + "-********-" + suffix
}

// MaskNationalID shows only the last three digits
func MaskNationalID(id string) string {
	if len(id) <= 3 {
		return strings.Repeat("*", len(id))
	}
	return strings.Repeat("*", len(id)-3) + id[len(id)-3:]
}

func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***.***"
	}

	local := parts[0]
	domain := parts[1]

	maskedLocal := maskPartial(local, 2)
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		maskedDomain := maskPartial(domainParts[0], 1) + "." + domainParts[len(domainParts)-1]
		return maskedLocal + "@" + maskedDomain
	}

	return maskedLocal + "@" + maskPartial(domain, 2)
}

func maskPartial(s string, showChars int) string {
	if len(s) <= showChars {
		return strings.Repeat("*", len(s))
	}
	return s[:showChars] + strings.Repeat("*", len(s)-showChars)
}

func isSensitiveField(field string) bool {
	lower := strings.ToLower(field)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

func maskSlice(slice []interface{}) []interface{} {
	masked := make([]interface{}, len(slice))
	for i, v := range slice {
		switch val := v.(type) {
		case string:
			masked[i] = MaskString(val)
		case map[string]interface{}:
			masked[i] = MaskMap(val)
		default:
			masked[i] = v
		}
	}
	return masked
}

// SanitizeForLog prepares data for safe logging
func SanitizeForLog(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		return MaskString(v)
	case map[string]interface{}:
		return MaskMap(v)
	case []interface{}:
		return maskSlice(v)
	default:
		return data
	}
}
