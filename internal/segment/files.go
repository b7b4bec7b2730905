package segment

// Extensions for the per-segment component files.
const (
	ExtPositions = "pos"
	ExtPostings  = "idx"
	ExtTermDict  = "term"
	ExtStore     = "store"
	ExtFieldNorm = "fieldnorm"
	ExtFast      = "fast"
	ExtDeletes   = "del"
)

// FileName composes the on-disk name for one of id's component files.
func FileName(id ID, ext string) string {
	return id.String() + "." + ext
}
