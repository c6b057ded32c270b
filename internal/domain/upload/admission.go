package upload

import (
	"io"
	"strings"
)

const ProfileImageName = "avatar.png"

// Rules are the admission parameters for one request. They are passed by
// value and never mutated after construction.
type Rules struct {
	MaxImageSize      int64
	MaxDocumentSize   int64
	QuotaBytes        int64
	ImageMimeTypes    []string
	DocumentMimeTypes []string
	ProfileImageName  string
}

func DefaultRules() Rules {
	return Rules{
		MaxImageSize:      500000,
		MaxDocumentSize:   2005000,
		QuotaBytes:        50000000,
		ImageMimeTypes:    []string{"image/png", "image/jpg", "image/jpeg"},
		DocumentMimeTypes: []string{"application/pdf"},
		ProfileImageName:  ProfileImageName,
	}
}

func (r Rules) Ledger() Ledger { return Ledger{Ceiling: r.QuotaBytes} }

// SizeLimit is the largest stream accepted for the given kind.
func (r Rules) SizeLimit(t FileType) int64 {
	if t.IsImage() {
		return r.MaxImageSize
	}
	return r.MaxDocumentSize
}

func (r Rules) tooLargeKind(t FileType) ErrorKind {
	if t.IsImage() {
		return KindImageTooLarge
	}
	return KindDocumentTooLarge
}

func (r Rules) invalidTypeKind(t FileType) ErrorKind {
	if t.IsImage() {
		return KindInvalidImageType
	}
	return KindInvalidDocumentType
}

// AllowsMimeType reports whether mimetype is acceptable for the kind.
// Comparison is exact and case-insensitive; parameters after ';' are ignored.
func (r Rules) AllowsMimeType(t FileType, mimetype string) bool {
	allowed := r.DocumentMimeTypes
	if t.IsImage() {
		allowed = r.ImageMimeTypes
	}
	mimetype = strings.TrimSpace(strings.SplitN(mimetype, ";", 2)[0])
	for _, m := range allowed {
		if strings.EqualFold(m, mimetype) {
			return true
		}
	}
	return false
}

// Candidate is one incoming file as declared by the client.
// A nil Stream means no file was sent.
type Candidate struct {
	FieldID  string
	Stream   io.ReadCloser
	Filename string
	Name     string
	FileType FileType
	Size     int64
	MimeType string
}

func (c Candidate) HasFile() bool { return c.Stream != nil }

// Decision is the outcome of Evaluate. AggregateDocSize excludes the
// candidate itself and is zero after a duplicate name rejection.
type Decision struct {
	Accepted         bool
	Reason           ErrorKind
	AggregateDocSize int64
}

// Evaluate decides whether candidate may be stored next to ownerFiles.
// Rules are checked in a fixed order and the first failure wins.
func Evaluate(rules Rules, ownerFiles []File, c Candidate) Decision {
	if !c.HasFile() {
		return Decision{Reason: KindMissingFile}
	}
	if c.Name == "" {
		return Decision{Reason: KindMissingName}
	}
	if c.Size > rules.SizeLimit(c.FileType) {
		return Decision{Reason: rules.tooLargeKind(c.FileType)}
	}
	if !rules.AllowsMimeType(c.FileType, c.MimeType) {
		return Decision{Reason: rules.invalidTypeKind(c.FileType)}
	}

	var aggregate int64
	for _, f := range ownerFiles {
		if f.FileType.IsImage() {
			continue
		}
		aggregate += f.Size
		if !c.FileType.IsImage() && f.Name == c.Name {
			return Decision{Reason: KindDuplicateName}
		}
	}

	return Decision{Accepted: true, AggregateDocSize: aggregate}
}

// AggregateDocSize sums the sizes of the non-image files.
func AggregateDocSize(files []File) int64 {
	var total int64
	for _, f := range files {
		if !f.FileType.IsImage() {
			total += f.Size
		}
	}
	return total
}
