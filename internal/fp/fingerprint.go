package fp

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/veikko/mapstore/internal/data"
)

// NormalizeName trims surrounding whitespace from a country name. Catalog
// names are already canonical; this only guards against sloppy callers.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}

// Transfer computes a stable hex-encoded SHA-256 identifying one download
// attempt: country, component mask, dataset version and the attempt token.
// The journal uses it as a unique row key.
func Transfer(name string, files data.MapOptions, version int64, attempt string) string {
	h := sha256.New()
	// NUL separators cannot appear in any of the inputs.
	h.Write([]byte(NormalizeName(name)))
	h.Write([]byte{0})
	h.Write([]byte(files.String()))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(version, 10)))
	h.Write([]byte{0})
	h.Write([]byte(attempt))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
