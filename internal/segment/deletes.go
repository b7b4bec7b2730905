package segment

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/nutmeg-labs/ember/directory"
	"github.com/nutmeg-labs/ember/ftserrors"
)

// WriteDeletes persists bm as id's deletes file, marking docs deleted
// without mutating any other component file of the segment.
func WriteDeletes(dir directory.Directory, id ID, bm *roaring.Bitmap) error {
	buf, err := bm.ToBytes()
	if err != nil {
		return ftserrors.NewDataError(err, ftserrors.ErrorCodeInternal, "failed to serialize deletes bitmap")
	}
	wc, err := dir.OpenWrite(FileName(id, ExtDeletes))
	if err != nil {
		return err
	}
	data := AppendFooter(buf)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Sync(); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}
