package ingest

import "errors"

var (
	// ErrStorageUploadFailed marks a failed bytes transfer to the
	// object store. Terminal for the attempt; no internal retry.
	ErrStorageUploadFailed = errors.New("storage upload failed")

	// ErrProcessingTimeout marks an exhausted polling budget without a
	// terminal backend status.
	ErrProcessingTimeout = errors.New("processing timed out")

	// ErrIngestInProgress rejects a second ingestion while one is
	// still running.
	ErrIngestInProgress = errors.New("an ingestion is already in progress")

	// Admission guard rejections, raised before any network call.
	ErrFileTooLarge        = errors.New("file exceeds the size limit")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
