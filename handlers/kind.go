package handlers

import "fmt"

type Kind string

const (
	KindMedia    Kind = "media"
	KindImage    Kind = "image"
	KindGallery  Kind = "gallery"
	KindMetadata Kind = "metadata"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindMedia, KindImage, KindGallery, KindMetadata:
		return k, nil
	}
	return "", fmt.Errorf("unknown job kind %q", s)
}

// DefaultMaxAttempts is lower for kinds a user is waiting on.
func (k Kind) DefaultMaxAttempts() int {
	if k == KindImage {
		return 5
	}
	return 15
}
