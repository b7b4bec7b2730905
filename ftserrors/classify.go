package ftserrors

import (
	"os"
	"syscall"
)

// ClassifyDirectoryError inspects a failure from creating or opening a
// segment directory and returns a DataError carrying the most specific
// code available (permission denied, disk full, read-only filesystem, or
// a generic I/O error), so callers can react without parsing messages.
func ClassifyDirectoryError(err error, path string) error {
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return NewDataError(err, ErrorCodePermissionDenied, "insufficient permissions for index directory").
			WithFileName(path)
	}
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewDataError(err, ErrorCodeDiskFull, "insufficient disk space for index directory").
					WithFileName(path)
			case syscall.EROFS:
				return NewDataError(err, ErrorCodeFilesystemReadonly, "index directory is on a read-only filesystem").
					WithFileName(path)
			}
		}
	}
	return NewDataError(err, ErrorCodeIO, "failed to access index directory").WithFileName(path)
}

// ClassifySegmentFileError performs the same analysis as
// ClassifyDirectoryError but for an individual segment file, attaching the
// segment id for correlation.
func ClassifySegmentFileError(err error, segmentID, fileName string) error {
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return NewDataError(err, ErrorCodePermissionDenied, "insufficient permissions for segment file").
			WithSegment(segmentID).WithFileName(fileName)
	}
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewDataError(err, ErrorCodeDiskFull, "insufficient disk space for segment file").
					WithSegment(segmentID).WithFileName(fileName)
			case syscall.EROFS:
				return NewDataError(err, ErrorCodeFilesystemReadonly, "segment file is on a read-only filesystem").
					WithSegment(segmentID).WithFileName(fileName)
			case syscall.EIO:
				return NewDataError(err, ErrorCodeIO, "I/O error on segment file, possible hardware or corruption issue").
					WithSegment(segmentID).WithFileName(fileName)
			}
		}
	}
	return NewDataError(err, ErrorCodeIO, "failed to access segment file").
		WithSegment(segmentID).WithFileName(fileName)
}
