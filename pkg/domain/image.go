package domain

import (
	"encoding/base64"
	"strings"
)

// ImageMediaPrefix is the declared media type prefix every accepted upload must carry.
const ImageMediaPrefix = "image/"

// UploadedImage is an embeddable representation of a user-supplied image.
type UploadedImage struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`

	// Width and Height are filled when the image header could be decoded.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// DataURI is the "data:<media_type>;base64,<payload>" form used for previews.
	DataURI string `json:"data_uri"`
}

// IsImageMediaType reports whether a declared media type names an image.
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), ImageMediaPrefix)
}

// EncodeDataURI builds a base64 data URI for the given payload.
func EncodeDataURI(mediaType string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len("data:;base64,") + len(mediaType) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString("data:")
	sb.WriteString(mediaType)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String()
}
