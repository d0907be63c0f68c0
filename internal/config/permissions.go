package config

import (
	"fmt"
	"strings"
)

// Permission letters, one per class of FTP operation.
const (
	PermChangeDir byte = 'e' // CWD, CDUP
	PermList      byte = 'l' // LIST, NLST, MLSD, MLST, SIZE, MDTM
	PermRead      byte = 'r' // RETR
	PermAppend    byte = 'a' // APPE
	PermDelete    byte = 'd' // DELE, RMD
	PermRename    byte = 'f' // RNFR, RNTO
	PermMakeDir   byte = 'm' // MKD
	PermWrite     byte = 'w' // STOR, STOU
	PermChmod     byte = 'M' // SITE CHMOD
	PermSetTime   byte = 'T' // MFMT
)

const (
	allPermissions   = "elradfmwMT"
	writePermissions = "adfmwMT"
)

// Permissions is a set of permission letters such as "elradfmwMT".
type Permissions string

// Validate rejects unknown or repeated letters.
func (p Permissions) Validate() error {
	seen := make(map[rune]bool, len(p))
	for _, r := range string(p) {
		if !strings.ContainsRune(allPermissions, r) {
			return fmt.Errorf("unknown permission %q (allowed: %s)", r, allPermissions)
		}
		if seen[r] {
			return fmt.Errorf("permission %q listed twice", r)
		}
		seen[r] = true
	}
	return nil
}

// Allows reports whether letter is part of the set.
func (p Permissions) Allows(letter byte) bool {
	return strings.IndexByte(string(p), letter) >= 0
}

// Writable reports whether any letter grants modification of the tree.
func (p Permissions) Writable() bool {
	return strings.ContainsAny(string(p), writePermissions)
}
