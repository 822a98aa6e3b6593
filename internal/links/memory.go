package links

import "context"

// MemoryStore serves a fixed slug map, seeded from configuration.
type MemoryStore struct {
	links map[string]string
}

// NewMemoryStore builds a store from a slug→destination map.
func NewMemoryStore(seed map[string]string) *MemoryStore {
	links := make(map[string]string, len(seed))
	for slug, dest := range seed {
		if slug == "" || dest == "" {
			continue
		}
		links[slug] = dest
	}
	return &MemoryStore{links: links}
}

// Resolve looks up the slug in the seeded map.
func (s *MemoryStore) Resolve(_ context.Context, slug string) (Link, error) {
	dest, ok := s.links[slug]
	if !ok {
		return Link{}, ErrNotFound
	}
	return Link{Slug: slug, Destination: dest}, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() {}
