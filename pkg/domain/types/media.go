package types

import "fmt"

// MediaType represents the kind of media attached to an incoming message
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVoice    MediaType = "voice"
	MediaDocument MediaType = "document"
	MediaLocation MediaType = "location"
)

// AllMediaTypes returns all valid media types
func AllMediaTypes() []MediaType {
	return []MediaType{
		MediaPhoto,
		MediaVoice,
		MediaDocument,
		MediaLocation,
	}
}

// IsValid checks if the media type is valid
func (m MediaType) IsValid() bool {
	switch m {
	case MediaPhoto, MediaVoice, MediaDocument, MediaLocation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the media type
func (m MediaType) String() string {
	return string(m)
}

// ParseMediaType parses a string into a MediaType
func ParseMediaType(s string) (MediaType, error) {
	mt := MediaType(s)
	if !mt.IsValid() {
		return "", fmt.Errorf("invalid media type: %s", s)
	}
	return mt, nil
}
