// Package hashstore implements the content hasher and meta record (spec
// §4.D): a short, fast fingerprint hash and a long, cryptographic composite
// hash, plus the rules for hashing commands, files, values, and dependency
// sets.
package hashstore

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Domain prefixes separate the long hash's use sites so a command hash and
// a value hash can never collide even given identical bytes, following the
// null-byte domain-separation pattern of hashWithDomain in the wider
// example pack.
const (
	domainCommand = "buildgrid/command/v1"
	domainValue   = "buildgrid/value/v1"
	domainDepends = "buildgrid/depends/v1"
)

// ShortHash is the fast, non-cryptographic fingerprint used for per-file
// change detection (spec §4.D default: a 64-bit hash).
func ShortHash(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LongHash is the cryptographic, domain-separated composite hash (spec
// §4.D default: a 256-bit hash).
func LongHash(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CommandHash hashes a standardized command source (spec §4.D "Command
// hash"). Callers pass the output of syntax.Standardize.
func CommandHash(standardized string) string {
	return LongHash(domainCommand, []byte(standardized))
}

// FileHash hashes raw file contents (spec §4.D "File hash") with the short
// hash.
func FileHash(contents []byte) string {
	return ShortHash(contents)
}

// ValueHash hashes a cty.Value using the stable go-cty JSON serializer, so
// two values that are structurally equal hash identically regardless of
// map key order (spec §4.D "Value hash").
func ValueHash(v cty.Value) (string, error) {
	simple := ctyjson.SimpleJSONValue{Value: v}
	data, err := simple.MarshalJSON()
	if err != nil {
		return "", err
	}
	return LongHash(domainValue, data), nil
}

// DependHash computes the depends_hash over sorted (name, hash) pairs
// (spec §4.D "Depends hash").
func DependHash(pairs []DependPair) string {
	sorted := sortedPairs(pairs)
	var buf []byte
	for _, p := range sorted {
		buf = append(buf, []byte(p.Name)...)
		buf = append(buf, 0x00)
		buf = append(buf, []byte(p.Hash)...)
		buf = append(buf, 0x00)
	}
	return LongHash(domainDepends, buf)
}

// DependPair is a single (name, hash) entry in a depends_hash computation.
type DependPair struct {
	Name string
	Hash string
}

func sortedPairs(pairs []DependPair) []DependPair {
	out := make([]DependPair, len(pairs))
	copy(out, pairs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
