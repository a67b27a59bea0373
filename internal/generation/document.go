package generation

import (
	"sync"

	"github.com/phrazzld/slidegen/internal/document"
)

// Document is the uploaded file as seen by one job. Its text is extracted
// at most once, on first use, and shared by every step of the job.
type Document struct {
	Data     []byte
	MIMEType string

	once sync.Once
	text string
	err  error
}

// NewDocument normalizes mimeType, detecting it from data when it is empty
// or generic.
func NewDocument(data []byte, mimeType string) *Document {
	return &Document{Data: data, MIMEType: document.DetectType(data, mimeType)}
}

// Text returns the extracted plain text.
func (d *Document) Text() (string, error) {
	d.once.Do(func() {
		d.text, d.err = document.Load(d.Data, d.MIMEType)
	})
	return d.text, d.err
}
