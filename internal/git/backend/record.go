package backend

import "strings"

// Bulk history records use ASCII unit/record separators, which git never
// emits for well-formed commit metadata. A separator inside a commit message
// shows up as a wrong field count when the record is parsed.
const (
	FieldSep  = '\x1f'
	RecordSep = '\x1e'

	// RecordFields is the number of fields in each record:
	// hash, short hash, parents, author name, author email, author time,
	// commit time, decorations, subject, body, stash marker.
	RecordFields = 11

	StashMarker = "S"
)

// logFormat yields the first ten fields; the stash marker is appended by
// the backend once the stash entries are known.
const logFormat = "%H%x1f%h%x1f%P%x1f%an%x1f%ae%x1f%at%x1f%ct%x1f%D%x1f%s%x1f%b"

// EncodeRecord joins fields into one record, including the trailing record
// separator.
func EncodeRecord(fields ...string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(FieldSep)
		}
		b.WriteString(f)
	}
	b.WriteByte(RecordSep)
	return b.String()
}

func stashField(stashes map[string]struct{}, hash string) string {
	if _, ok := stashes[hash]; ok {
		return StashMarker
	}
	return ""
}
