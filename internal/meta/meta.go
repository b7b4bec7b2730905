// Package meta implements the index's on-disk meta record: the live
// segment list, the current opstamp, and the `.managed.json` GC-tracking
// file. meta.json is the single publication point; replacing it is what
// makes a commit visible across process restarts.
package meta

import (
	"encoding/json"

	"github.com/nutmeg-labs/ember/directory"
	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/schema"
)

const (
	metaFileName    = "meta.json"
	managedFileName = ".managed.json"
	metaTempSuffix  = ".tmp"
	formatVersion   = 1
)

// FieldRecord is one schema field as persisted in meta.json.
type FieldRecord struct {
	ID      uint32        `json:"id"`
	Name    string        `json:"name"`
	Type    schema.Type   `json:"type"`
	Options schema.Options `json:"options"`
}

// SegmentRecord is one live segment as persisted in meta.json.
type SegmentRecord struct {
	ID      segment.ID `json:"id"`
	MaxDoc  uint32     `json:"maxDoc"`
	Opstamp uint64     `json:"opstamp"`
	DelFile bool       `json:"delFile"`
}

// Meta is the full on-disk index meta record.
type Meta struct {
	FormatVersion int             `json:"formatVersion"`
	Fields        []FieldRecord   `json:"fields"`
	Segments      []SegmentRecord `json:"segments"`
	Opstamp       uint64          `json:"opstamp"`
}

// FromSchema converts sch's declared fields into persisted FieldRecords.
func FromSchema(sch *schema.Schema) []FieldRecord {
	fields := sch.Fields()
	out := make([]FieldRecord, len(fields))
	for i, f := range fields {
		out[i] = FieldRecord{ID: f.ID, Name: f.Name, Type: f.Type, Options: f.Options}
	}
	return out
}

// ToSchema reconstructs a schema.Schema from persisted field records, in
// declaration order, so field ids are reassigned identically.
func ToSchema(fields []FieldRecord) (*schema.Schema, error) {
	sch := schema.NewSchema()
	for _, fr := range fields {
		if _, err := sch.AddField(fr.Name, fr.Type, fr.Options); err != nil {
			return nil, err
		}
	}
	return sch, nil
}

// New returns an empty meta record for a freshly created index.
func New(sch *schema.Schema) *Meta {
	return &Meta{FormatVersion: formatVersion, Fields: FromSchema(sch)}
}

// Load reads and parses meta.json, or reports ftserrors.ErrorCodeIO-style
// absence via the returned bool if the index has never been created.
func Load(dir directory.Directory) (*Meta, bool, error) {
	exists, err := dir.Exists(metaFileName)
	if err != nil || !exists {
		return nil, false, err
	}
	raw, err := dir.OpenRead(metaFileName)
	if err != nil {
		return nil, false, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, ftserrors.NewDataError(err, ftserrors.ErrorCodeUnknownFormat, "failed to parse meta.json")
	}
	if m.FormatVersion != formatVersion {
		return nil, false, ftserrors.NewDataError(nil, ftserrors.ErrorCodeUnknownFormat,
			"unsupported index meta format version")
	}
	return &m, true, nil
}

// LoadManaged reads the `.managed.json` file set: every file name the
// engine has created and may therefore garbage-collect. A missing file
// reports ok=false; deleting it out from under the engine is safe, it
// only prevents GC.
func LoadManaged(dir directory.Directory) ([]string, bool, error) {
	exists, err := dir.Exists(managedFileName)
	if err != nil || !exists {
		return nil, false, err
	}
	raw, err := dir.OpenRead(managedFileName)
	if err != nil {
		return nil, false, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false, ftserrors.NewDataError(err, ftserrors.ErrorCodeUnknownFormat, "failed to parse .managed.json")
	}
	return names, true, nil
}

// PersistManaged atomically replaces `.managed.json` with names.
func PersistManaged(dir directory.Directory, names []string) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return ftserrors.NewDataError(err, ftserrors.ErrorCodeInternal, "failed to serialize .managed.json")
	}
	tmp := managedFileName + metaTempSuffix
	wc, err := dir.OpenWrite(tmp)
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Sync(); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return dir.AtomicRename(tmp, managedFileName)
}

// Persist atomically replaces meta.json with m's contents (write-temp +
// rename).
func Persist(dir directory.Directory, m *Meta) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return ftserrors.NewDataError(err, ftserrors.ErrorCodeInternal, "failed to serialize meta.json")
	}
	tmp := metaFileName + metaTempSuffix
	wc, err := dir.OpenWrite(tmp)
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Sync(); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return dir.AtomicRename(tmp, metaFileName)
}
