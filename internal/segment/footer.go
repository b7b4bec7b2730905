package segment

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/nutmeg-labs/ember/ftserrors"
)

// formatVersion is the segment file format tag written into every segment
// file's footer.
const formatVersion uint32 = 1

// AppendFooter appends `[footer_len:u32 LE | footer_bytes]` to payload,
// where footer_bytes carries a CRC32 of payload and the format version.
func AppendFooter(payload []byte) []byte {
	crc := crc32.ChecksumIEEE(payload)
	footer := make([]byte, 8)
	binary.LittleEndian.PutUint32(footer[0:4], crc)
	binary.LittleEndian.PutUint32(footer[4:8], formatVersion)

	out := make([]byte, 0, len(payload)+4+len(footer))
	out = append(out, payload...)
	var footerLen [4]byte
	binary.LittleEndian.PutUint32(footerLen[:], uint32(len(footer)))
	out = append(out, footerLen[:]...)
	out = append(out, footer...)
	return out
}

// ValidateChecksum parses the footer off the end of data, verifies the
// CRC32 against the remaining payload, and returns the payload with the
// footer stripped.
func ValidateChecksum(data []byte) ([]byte, error) {
	const footerSize = 8
	if len(data) < 4+footerSize {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "segment file too small to contain a footer")
	}
	footerStart := len(data) - footerSize
	footerLen := binary.LittleEndian.Uint32(data[footerStart-4 : footerStart])
	if footerLen != footerSize {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "segment footer length mismatch")
	}
	footer := data[footerStart:]
	wantCRC := binary.LittleEndian.Uint32(footer[0:4])
	version := binary.LittleEndian.Uint32(footer[4:8])
	if version != formatVersion {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeUnknownFormat, "unknown segment format version")
	}
	payload := data[:footerStart-4]
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeChecksumMismatch, "segment file checksum mismatch")
	}
	return payload, nil
}
