package filetype

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const (
	PDF         = "application/pdf"
	OctetStream = "application/octet-stream"
)

// Info contains detected file type information
type Info struct {
	MIMEType    string
	Extension   string
	Label       string
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// DetectBytes detects the actual type of data using magic bytes. The name is
// only used to refine generic container types (zip, ole storage).
func (d *Detector) DetectBytes(name string, data []byte) Info {
	mtype := mimetype.Detect(data)
	mimeType := Normalize(mtype.String())
	extension := mtype.Extension()

	if mimeType == "application/zip" || mimeType == "application/x-ole-storage" {
		if byExt := Normalize(mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))); byExt != "" {
			log.Debug().Str("original", mimeType).Str("override", byExt).Str("file", name).Msg("overriding container detection based on extension")
			mimeType = byExt
			extension = strings.ToLower(filepath.Ext(name))
		}
	}

	log.Debug().Str("mime", mimeType).Str("ext", extension).Str("file", name).Msg("detected file type")

	info := Info{MIMEType: mimeType, Extension: extension, Label: Label(mimeType)}
	info.Description = describe(mimeType)
	return info
}

// Declared reports whether a client-supplied type carries information.
// Browsers and HTTP clients send application/octet-stream when they do not know.
func Declared(mimeType string) bool {
	m := Normalize(mimeType)
	return m != "" && m != OctetStream
}

// Normalize lower-cases a media type and strips parameters.
func Normalize(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return strings.ToLower(mt)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Same compares two media types ignoring case, parameters and known aliases.
func Same(a, b string) bool {
	return canonical(Normalize(a)) == canonical(Normalize(b))
}

func canonical(m string) string {
	switch m {
	case "application/x-pdf", "application/acrobat", "applications/vnd.pdf", "text/pdf", "text/x-pdf":
		return PDF
	}
	return m
}

// Label returns the short user-facing name of a type, e.g. "PDF".
func Label(mimeType string) string {
	switch m := canonical(Normalize(mimeType)); {
	case m == PDF:
		return "PDF"
	case m == "image/png":
		return "PNG"
	case m == "image/jpeg":
		return "JPEG"
	case m == "image/tiff":
		return "TIFF"
	case m == "":
		return "unknown"
	default:
		if i := strings.LastIndex(m, "/"); i >= 0 && i < len(m)-1 {
			return strings.ToUpper(m[i+1:])
		}
		return strings.ToUpper(m)
	}
}

func describe(mimeType string) string {
	switch {
	case mimeType == PDF:
		return "PDF document"
	case strings.HasPrefix(mimeType, "image/"):
		return "Image file"
	case mimeType == "text/html":
		return "HTML document"
	case strings.HasPrefix(mimeType, "text/"):
		return "Plain text file"
	case mimeType == "application/json":
		return "JSON document"
	case mimeType == "application/zip":
		return "ZIP archive"
	default:
		return "Unsupported file type: " + mimeType
	}
}
