package parse

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const defaultImagePrefix = "data:image/jpeg;base64,"

var dataURIRe = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,(.*)$`)

// ImageRef is a normalized image reference. URL is either an http(s) address
// or a data URI. Remote is true for http(s).
type ImageRef struct {
	URL    string
	Remote bool
}

func (r ImageRef) Empty() bool { return r.URL == "" }

// Image normalizes the inline image or image URL of a detection. image wins
// when both are set. Bare base64 gets a JPEG data URI prefix.
func Image(image, imageURL string) (ImageRef, error) {
	image = strings.TrimSpace(image)
	imageURL = strings.TrimSpace(imageURL)

	if image == "" && imageURL == "" {
		return ImageRef{}, nil
	}

	if image == "" {
		return remoteImage(imageURL)
	}
	if isHTTP(image) {
		return remoteImage(image)
	}

	if m := dataURIRe.FindStringSubmatch(image); m != nil {
		if err := checkBase64(m[1]); err != nil {
			return ImageRef{}, err
		}
		return ImageRef{URL: image}, nil
	}
	if strings.HasPrefix(image, "data:") {
		return ImageRef{}, fmt.Errorf("unsupported data uri")
	}

	if err := checkBase64(image); err != nil {
		return ImageRef{}, err
	}
	return ImageRef{URL: defaultImagePrefix + image}, nil
}

func isHTTP(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func remoteImage(raw string) (ImageRef, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ImageRef{}, fmt.Errorf("invalid image url: %q", raw)
	}
	return ImageRef{URL: raw, Remote: true}, nil
}

func checkBase64(payload string) error {
	if payload == "" {
		return fmt.Errorf("empty image payload")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		if _, rawErr := base64.RawStdEncoding.DecodeString(payload); rawErr != nil {
			return fmt.Errorf("invalid base64 image: %w", err)
		}
	}
	return nil
}
