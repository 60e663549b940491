package ofs

import "strings"

// DirEntry is one fixed-size slot in a directory data sector: an inode
// number paired with an N-byte, NUL-padded (not necessarily NUL
// terminated when the name is exactly N bytes) name field.
type DirEntry struct {
	Inode inodeID
	Name  string
}

func dirEntrySize(w wordWidth) int {
	return w.wordSize() + dirNameMax(w)
}

func (w wordWidth) dirNameOffset() int { return w.wordSize() }

func (d DirEntry) encode(w wordWidth) []byte {
	b := make([]byte, dirEntrySize(w))
	w.putWord(b, 0, d.Inode)
	nameOff := w.dirNameOffset()
	n := copy(b[nameOff:], d.Name)
	_ = n
	return b
}

func decodeDirEntry(w wordWidth, b []byte) DirEntry {
	nameOff := w.dirNameOffset()
	raw := b[nameOff:dirEntrySize(w)]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return DirEntry{
		Inode: w.getWord(b, 0),
		Name:  string(raw[:end]),
	}
}

// freeDirEntry is the sentinel inode value marking an unused directory
// slot: the all-ones word value for the mounted word width, distinct
// from any real inode ID (including RootInode == 0), matching
// FS_INVALID_INODE in the original.
func freeDirEntry(w wordWidth) DirEntry {
	return DirEntry{Inode: invalidWord(w)}
}

// free reports whether this slot is unused.
func (d DirEntry) free(w wordWidth) bool { return d.Inode == invalidWord(w) }

// validateName applies the directory name rules: length bounded by
// dirNameMax, character class restricted to letters, digits, '.', '_',
// '-' and space, and the two reserved all-dot / all-space forms
// rejected unless allowAllDot permits the all-dot form (used only for
// installing "." and "..").
func validateName(w wordWidth, name string, allowAllDot bool) Errno {
	max := dirNameMax(w)
	if len(name) == 0 || len(name) > max {
		return ErrNameTooLong
	}
	allDot := true
	allSpace := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			allDot = false
			allSpace = false
		case c == '.':
			allSpace = false
		case c == '_' || c == '-':
			allDot = false
			allSpace = false
		case c == ' ':
			allDot = false
		default:
			return ErrIllegalChar
		}
	}
	if allSpace {
		return ErrIllegalName
	}
	if allDot && !allowAllDot {
		return ErrIllegalName
	}
	return Success
}

// trimmedEqual compares two directory names the way lookups do: exact
// byte comparison after trailing-NUL trim, which decodeDirEntry already
// performs, so this is just a strings.EqualFold-free direct compare
// kept as a named helper for readability at call sites.
func trimmedEqual(a, b string) bool {
	return strings.Compare(a, b) == 0
}
