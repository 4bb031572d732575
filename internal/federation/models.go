// Package federation exchanges diagnosis keys with a partner interop
// server: Downloader imports keys page by page, Uploader exports local
// submissions, and Cursor remembers how far each direction got.
package federation

import (
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/tek"
)

// BatchDateLayout formats batch dates in URLs and cursors.
const BatchDateLayout = "2006-01-02"

// Batch identifies one page of the partner's key feed.
type Batch struct {
	BatchTag  string
	BatchDate time.Time
}

// ExposureDownload is one key received from the partner.
type ExposureDownload struct {
	KeyData               string   `json:"keyData"`
	RollingStartNumber    int64    `json:"rollingStartNumber"`
	TransmissionRiskLevel int32    `json:"transmissionRiskLevel"`
	RollingPeriod         int32    `json:"rollingPeriod"`
	Origin                string   `json:"origin"`
	Regions               []string `json:"regions"`
	DaysSinceOnset        *int32   `json:"daysSinceOnset,omitempty"`
}

// Key converts the exposure to the stored key form.
func (e ExposureDownload) Key() tek.Key {
	return tek.Key{
		KeyData:               e.KeyData,
		RollingStartNumber:    e.RollingStartNumber,
		RollingPeriod:         e.RollingPeriod,
		TransmissionRiskLevel: e.TransmissionRiskLevel,
		DaysSinceOnset:        e.DaysSinceOnset,
	}
}

// DownloadResponse is the body of a 200 download response.
type DownloadResponse struct {
	BatchTag  string             `json:"batchTag"`
	Exposures []ExposureDownload `json:"exposures"`
}

// ExposureUpload is one key sent to the partner.
type ExposureUpload struct {
	KeyData               string   `json:"keyData"`
	RollingStartNumber    int64    `json:"rollingStartNumber"`
	TransmissionRiskLevel int32    `json:"transmissionRiskLevel"`
	RollingPeriod         int32    `json:"rollingPeriod"`
	Regions               []string `json:"regions"`
	DaysSinceOnset        *int32   `json:"daysSinceOnset,omitempty"`
}

type uploadRequest struct {
	BatchTag string `json:"batchTag"`
	Payload  string `json:"payload"`
}

// UploadResponse is the body of a 200 upload response.
type UploadResponse struct {
	BatchTag          string `json:"batchTag"`
	InsertedExposures int    `json:"insertedExposures"`
}
