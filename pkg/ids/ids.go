// Package ids generates instance identifiers that are unique within a conversation.
package ids

import (
	"fmt"
	"strconv"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/google/uuid"
)

// Generator produces instance IDs. It receives the conversation's instance
// store so that counter-based strategies can persist their sequence with it.
type Generator interface {
	NewID(store *domain.Topical) string
}

// Sequential issues IDs from the monotonic counter kept in the instance store.
// IDs never repeat within a conversation, even for instances created in the
// same turn, and stay stable across restarts because the counter is persisted.
type Sequential struct {
	Prefix string
}

// NewID implements Generator.
func (s Sequential) NewID(store *domain.Topical) string {
	store.Seq++
	prefix := s.Prefix
	if prefix == "" {
		prefix = "i"
	}
	return prefix + strconv.FormatUint(store.Seq, 10)
}

// UUID issues random v4 UUIDs.
type UUID struct{}

// NewID implements Generator.
func (UUID) NewID(*domain.Topical) string {
	return uuid.NewString()
}

// Parse resolves a strategy name as used in config files and CLI flags.
func Parse(name string) (Generator, error) {
	switch name {
	case "", "seq", "sequential":
		return Sequential{}, nil
	case "uuid":
		return UUID{}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", name)
	}
}
