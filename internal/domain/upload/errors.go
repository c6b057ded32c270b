package upload

import (
	"errors"
	"fmt"
)

var (
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrEmptyBatch       = errors.New("batch contains no files")
	ErrBatchTooLarge    = errors.New("batch exceeds the maximum number of files")
	ErrImageRename      = errors.New("the profile image cannot be renamed")
	ErrDisconnected     = errors.New("request disconnected during file upload stream")
	ErrExceedsLimit     = errors.New("stream exceeds the allowed size")
	ErrInvalidOwnerName = errors.New("owner has no usable storage name")
)

// ErrorKind identifies a user-correctable rejection of a candidate file.
type ErrorKind string

const (
	KindMissingFile         ErrorKind = "MISSING_FILE"
	KindMissingName         ErrorKind = "MISSING_NAME"
	KindImageTooLarge       ErrorKind = "IMAGE_TOO_LARGE"
	KindInvalidImageType    ErrorKind = "INVALID_IMAGE_TYPE"
	KindDocumentTooLarge    ErrorKind = "DOCUMENT_TOO_LARGE"
	KindInvalidDocumentType ErrorKind = "INVALID_DOCUMENT_TYPE"
	KindDuplicateName       ErrorKind = "DUPLICATE_NAME"
	KindImageInBatch        ErrorKind = "IMAGE_IN_BATCH"
)

var kindMessages = map[ErrorKind]string{
	KindMissingFile:         "File is required for upload.",
	KindMissingName:         "Please enter a name for the document.",
	KindImageTooLarge:       "Image size cannot exceed 500 KB.",
	KindInvalidImageType:    "Image type must be jpg, jpeg, or png.",
	KindDocumentTooLarge:    "Document size cannot exceed 2 MB.",
	KindInvalidDocumentType: "Document must be a pdf.",
	KindDuplicateName:       "Document with this name already exists. Please rename the document, or delete the existing document.",
	KindImageInBatch:        "Profile images must be uploaded on their own.",
}

func (k ErrorKind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return string(k)
}

// ValidationError is a rejection tied to the form field that carried the file.
type ValidationError struct {
	FieldID string    `json:"fieldId"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func NewValidationError(fieldID string, kind ErrorKind) *ValidationError {
	return &ValidationError{FieldID: fieldID, Kind: kind, Message: kind.Message()}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// QuotaError reports the attempted upload size and the headroom left.
// Remaining may be negative.
type QuotaError struct {
	UploadSize int64 `json:"uploadSize"`
	Remaining  int64 `json:"remaining"`
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("upload of %d bytes exceeds quota, %d bytes remaining", e.UploadSize, e.Remaining)
}
