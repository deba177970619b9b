package checksum

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Digest returns the hex encoded xxhash64 of data
func Digest(data []byte) string {
	digest := xxhash.New()
	digest.Write(data)

	return hex.EncodeToString(digest.Sum(nil))
}
