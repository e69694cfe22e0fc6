package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Org represents an organization (club, association) and the tenant boundary of all its data.
type Org struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
// An empty slug is derived from the name.
func (o *Org) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return errors.New("name is required")
	}
	if o.Slug == "" {
		o.Slug = Slugify(o.Name)
	}
	if !slugPattern.MatchString(o.Slug) {
		return errors.New("slug must be lowercase letters, digits and single dashes")
	}
	return nil
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}
