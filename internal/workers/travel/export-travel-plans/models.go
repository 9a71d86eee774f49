package exporttravelplans

// Input carries no required variables. Upload false keeps the CSV inline
// even when object storage is configured.
type Input struct {
	Upload *bool `json:"upload,omitempty"`
}

type Output struct {
	CSV         string `json:"csv,omitempty"`
	RecordCount int    `json:"recordCount"`
	ObjectKey   string `json:"objectKey,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}
