package scanner

import "github.com/cespare/xxhash/v2"

// Fingerprint returns a 64-bit content identifier for a statement. Equal
// statements always fingerprint equal; collisions are tolerated.
func Fingerprint(statement string) uint64 {
	return xxhash.Sum64String(statement)
}
