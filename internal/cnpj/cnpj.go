// Package cnpj canonicalizes Brazilian organization tax identifiers.
package cnpj

const (
	fullLen = 14
	rootLen = 8
)

// Normalize strips every non-digit character from raw and returns the
// 14-digit identifier. Anything shorter than 14 digits is invalid and
// normalizes to the empty string; longer input is truncated to 14.
func Normalize(raw string) string {
	digits := make([]byte, 0, fullLen)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
			if len(digits) == fullLen {
				break
			}
		}
	}
	if len(digits) < fullLen {
		return ""
	}
	return string(digits)
}

// GroupKey returns the registration root: the first 8 digits of a normalized
// CNPJ, shared by every branch and affiliate of the same legal entity.
// An invalid identifier has an empty group key.
func GroupKey(id string) string {
	if len(id) < rootLen {
		return ""
	}
	return id[:rootLen]
}

// SameGroup reports whether two normalized identifiers share a registration
// root. Invalid identifiers never belong to any group.
func SameGroup(a, b string) bool {
	ka, kb := GroupKey(a), GroupKey(b)
	return ka != "" && ka == kb
}
