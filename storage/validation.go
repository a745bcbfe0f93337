package storage

// Collaborator maps are keyed by caller-supplied email addresses, and those
// documents are served back to JavaScript clients that index into them. Keys
// that redefine inherited object behavior must therefore never reach a
// key-based lookup or assignment.
var reservedMapKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// IsReservedMapKey reports whether key is denylisted as a mapping key.
func IsReservedMapKey(key string) bool {
	_, reserved := reservedMapKeys[key]
	return reserved
}

// ValidateMapKey rejects denylisted email keys with ErrInvalid.
func ValidateMapKey(email string) error {
	if IsReservedMapKey(email) {
		return NewError(ErrInvalid, "Invalid email parameter %q", email)
	}
	return nil
}
