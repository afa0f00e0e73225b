package httpdl

import (
	"encoding/json"
	"os"
)

// resumeState is the ".resume" sidecar payload. The offset is authoritative;
// the payload file may be longer if the process died mid-write. The etag, if
// known, guards resumed ranges against the remote file changing in between.
type resumeState struct {
	Offset int64  `json:"offset"`
	ETag   string `json:"etag,omitempty"`
}

// resumeOffset decides where a fresh attempt should continue writing. It
// trusts the sidecar when present and falls back to the payload size, which
// matches a clean shutdown where the sidecar was never flushed.
func resumeOffset(part, resumePath string) (int64, string) {
	if b, err := os.ReadFile(resumePath); err == nil {
		var st resumeState
		if json.Unmarshal(b, &st) == nil && st.Offset >= 0 {
			if info, err := os.Stat(part); err == nil && st.Offset <= info.Size() {
				return st.Offset, st.ETag
			}
		}
	}
	if info, err := os.Stat(part); err == nil {
		return info.Size(), ""
	}
	return 0, ""
}

func (d *Downloader) persistResume(resumePath string, offset int64, etag string) {
	b, err := json.Marshal(resumeState{Offset: offset, ETag: etag})
	if err != nil {
		return
	}
	if err := os.WriteFile(resumePath, b, 0o644); err != nil {
		d.log.Warn("persist resume state failed", "path", resumePath, "err", err)
	}
}
