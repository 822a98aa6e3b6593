// Package links resolves landing-page slugs to their destinations.
package links

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a slug has no destination.
var ErrNotFound = errors.New("link not found")

// Link is one resolvable slug.
type Link struct {
	Slug        string
	Destination string
}

// Store resolves slugs.
type Store interface {
	Resolve(ctx context.Context, slug string) (Link, error)
	Close()
}
