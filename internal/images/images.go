// Package images stores post attachments with an external image host.
package images

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var ErrNotFound = errors.New("image not found")

// Store uploads attachments and deletes them again by their public URL.
type Store interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, imageURL string) error
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL derives the host-side identifier of an uploaded image:
// the path after the delivery prefix and version, without the extension.
// https://res.cloudinary.com/demo/image/upload/v17/img-repository/cat.png
// yields img-repository/cat.
func PublicIDFromURL(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	start := 0
	for i, s := range segments {
		if s == "upload" {
			start = i + 1
			break
		}
	}
	if start < len(segments) && versionSegment.MatchString(segments[start]) {
		start++
	}
	if start >= len(segments) || segments[len(segments)-1] == "" {
		return "", errors.New("image url has no public id")
	}

	id := strings.Join(segments[start:], "/")
	return strings.TrimSuffix(id, path.Ext(id)), nil
}

// baseName strips directories and the extension from an uploaded filename
// and keeps only characters that are safe in a public id.
func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		}
		return -1
	}, name)
	if name == "" || name == "_" {
		return "image"
	}
	return name
}
