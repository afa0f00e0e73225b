package data

// Status is the derived lifecycle state of a country's local presence and
// transfer activity. It is never stored; the storage engine recomputes it
// from registry and queue state on every query.
type Status string

const (
	StatusNotDownloaded   Status = "NotDownloaded"
	StatusInQueue         Status = "InQueue"
	StatusDownloading     Status = "Downloading"
	StatusOnDisk          Status = "OnDisk"
	StatusOnDiskOutOfDate Status = "OnDiskOutOfDate"
	StatusDownloadFailed  Status = "DownloadFailed"
)
