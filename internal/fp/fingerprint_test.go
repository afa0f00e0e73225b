package fp

import (
	"testing"

	"github.com/veikko/mapstore/internal/data"
)

func TestTransferFingerprint(t *testing.T) {
	fp1 := Transfer("  Uruguay ", data.MapOptionMap, 1234, "a1")
	fp2 := Transfer("Uruguay", data.MapOptionMap, 1234, "a1")
	if fp1 != fp2 {
		t.Fatalf("fingerprints differ: %s vs %s", fp1, fp2)
	}
	if len(fp1) != 64 { // hex-encoded sha256
		t.Fatalf("unexpected fp length: %d", len(fp1))
	}

	if Transfer("Uruguay", data.MapOptionMap, 1234, "a1") == Transfer("Uruguay", data.MapOptionMap, 1234, "a2") {
		t.Fatalf("attempt token should change the fingerprint")
	}
	if Transfer("Uruguay", data.MapOptionMap, 1234, "a1") == Transfer("Uruguay", data.MapOptionCarRouting, 1234, "a1") {
		t.Fatalf("component mask should change the fingerprint")
	}
}
