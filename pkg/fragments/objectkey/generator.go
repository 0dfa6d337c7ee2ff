// Package objectkey derives blob store keys for fragment bytes.
package objectkey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates the blob key for a fragment's bytes
	GenerateKey(ownerID, id string) string
}

// FlatGenerator stores bytes under "{owner}/{id}".
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(ownerID, id string) string {
	return fmt.Sprintf("%s/%s", sanitizePathComponent(ownerID), sanitizePathComponent(id))
}

// ShardedGenerator provides Git-style sharded keys derived from a hash of
// owner and id: fragments/ab/cdef0123...
type ShardedGenerator struct {
	// ShardLength controls how many hex characters form the directory (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(ownerID, id string) string {
	sum := sha256.Sum256([]byte(ownerID + "\x00" + id))
	digest := hex.EncodeToString(sum[:])

	n := g.ShardLength
	if n <= 0 || n >= len(digest) {
		n = 2
	}
	return fmt.Sprintf("fragments/%s/%s", digest[:n], digest[n:])
}

// New returns the generator for a layout name: "flat" or "sharded".
func New(layout string) (Generator, error) {
	switch strings.ToLower(layout) {
	case "", "flat":
		return NewFlatGenerator(), nil
	case "sharded", "git-like":
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key layout: %s", layout)
	}
}

// sanitizePathComponent keeps a key component from escaping its directory.
func sanitizePathComponent(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "." || s == ".." || s == "" {
		return "_"
	}
	return s
}
