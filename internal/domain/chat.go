package domain

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// usecases and LLM integrations. Images are attached to user turns only.
type ChatMessage struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Images  []Image `json:"-"`
}

// Image is an uploaded photo. ID is the opaque handle used for evidence.
type Image struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// ImageInfo describes an upload without its bytes. Only Evidence keeps the
// bytes of an image.
type ImageInfo struct {
	ID          string
	Name        string
	ContentType string
	Size        int
}

func (img Image) Info() ImageInfo {
	return ImageInfo{ID: img.ID, Name: img.Name, ContentType: img.ContentType, Size: len(img.Data)}
}

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// DetectImageType sniffs the content type of data and reports whether it is
// one the vision model accepts.
func DetectImageType(data []byte) (string, bool) {
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return ct, supportedImageTypes[ct]
}

// DataURI renders the image as a base64 data URI.
func (img Image) DataURI() string {
	ct := img.ContentType
	if ct == "" {
		ct, _ = DetectImageType(img.Data)
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
