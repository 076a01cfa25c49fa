package fingerprint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// PathFromURI resolves a media reference to a filesystem path. Plain paths
// pass through; file:// URIs are unescaped. Other schemes are rejected.
func PathFromURI(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty media reference")
	}
	if !strings.Contains(ref, "://") {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse media reference: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "file") {
		return "", fmt.Errorf("unsupported media reference scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("media reference %q has no path", ref)
	}
	return u.Path, nil
}
