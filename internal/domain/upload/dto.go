package upload

import (
	"fmt"
	"mime/multipart"
	"sort"
	"strconv"
	"strings"
)

// FileForm is the metadata sent next to one file part. In a batch every key
// carries the "files[i]." prefix.
type FileForm struct {
	FieldID  string `form:"fieldId" validate:"max=128"`
	Name     string `form:"name" validate:"max=255"`
	FileType string `form:"filetype" validate:"required,oneof=PROFILEIMAGE RESUME COVERLETTER DOCUMENT"`
	Size     string `form:"size" validate:"omitempty,numeric"`
	MimeType string `form:"mimetype" validate:"max=255"`
}

type RenameRequest struct {
	Path string `json:"path" validate:"required"`
	Name string `json:"name" validate:"required,max=255"`
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func readFileForm(form *multipart.Form, prefix, defaultFieldID string) FileForm {
	f := FileForm{
		FieldID:  formValue(form, prefix+"fieldId"),
		Name:     formValue(form, prefix+"name"),
		FileType: strings.ToUpper(formValue(form, prefix+"filetype")),
		Size:     formValue(form, prefix+"size"),
		MimeType: formValue(form, prefix+"mimetype"),
	}
	if f.FieldID == "" {
		f.FieldID = defaultFieldID
	}
	return f
}

// candidate opens the file part, if any. Declared size and mimetype fall
// back to what the multipart header says.
func (f FileForm) candidate(fh *multipart.FileHeader) (Candidate, error) {
	c := Candidate{
		FieldID:  f.FieldID,
		Name:     f.Name,
		FileType: FileType(f.FileType),
		MimeType: f.MimeType,
	}
	if f.Size != "" {
		size, err := strconv.ParseInt(f.Size, 10, 64)
		if err != nil {
			return c, fmt.Errorf("parse size: %w", err)
		}
		if size < 0 {
			return c, fmt.Errorf("size must not be negative: %d", size)
		}
		c.Size = size
	}
	if fh == nil {
		return c, nil
	}

	if f.Size == "" {
		c.Size = fh.Size
	}
	if c.MimeType == "" {
		c.MimeType = fh.Header.Get("Content-Type")
	}
	c.Filename = fh.Filename

	stream, err := fh.Open()
	if err != nil {
		return c, fmt.Errorf("open %s: %w", f.FieldID, err)
	}
	c.Stream = stream
	return c, nil
}

func firstFile(form *multipart.Form, key string) *multipart.FileHeader {
	if files := form.File[key]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// batchIndexes returns the distinct slot indexes used by "files[i]..." keys.
func batchIndexes(form *multipart.Form) []int {
	seen := map[int]struct{}{}
	collect := func(key string) {
		if !strings.HasPrefix(key, "files[") {
			return
		}
		end := strings.IndexByte(key, ']')
		if end < 0 {
			return
		}
		i, err := strconv.Atoi(key[len("files["):end])
		if err != nil || i < 0 {
			return
		}
		seen[i] = struct{}{}
	}
	for k := range form.Value {
		collect(k)
	}
	for k := range form.File {
		collect(k)
	}

	idx := make([]int, 0, len(seen))
	for i := range seen {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func slotPrefix(i int) string { return fmt.Sprintf("files[%d]", i) }
