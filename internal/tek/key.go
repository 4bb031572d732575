// Package tek holds the Temporary Exposure Key model and the interval
// arithmetic that decides whether a key may still be shared.
package tek

import (
	"encoding/base64"
	"strings"
	"time"
)

// Key is a single Temporary Exposure Key as submitted by a device or received
// from a federation partner. KeyData is the base64 encoding of the raw bytes.
type Key struct {
	KeyData               string `json:"key"`
	RollingStartNumber    int64  `json:"rollingStartNumber"`
	RollingPeriod         int32  `json:"rollingPeriod"`
	TransmissionRiskLevel int32  `json:"transmissionRisk"`
	DaysSinceOnset        *int32 `json:"daysSinceOnsetOfSymptoms,omitempty"`
}

// Submission groups the keys received in one upload.
//
// Origin is empty for keys submitted by local devices and holds the partner
// region code for keys imported through federation.
type Submission struct {
	ID          string
	SubmittedAt time.Time
	Origin      string
	BatchTag    string
	Keys        []Key
}

// IsFederated reports whether the submission was imported from a partner.
func (s Submission) IsFederated() bool {
	return s.Origin != ""
}

// IsValidAt reports whether the key is inside the sharing window at ref:
// it must not have ended before ref minus the retention period and must
// not start after ref.
func (k Key) IsValidAt(ref time.Time) bool {
	earliest := IntervalNumber(ref.Add(-RetentionPeriod))
	latest := IntervalNumber(ref)
	return k.RollingStartNumber+int64(k.RollingPeriod) >= earliest &&
		k.RollingStartNumber <= latest
}

// DecodedKey returns the raw key bytes. Padding is optional.
func (k Key) DecodedKey() ([]byte, error) {
	if strings.HasSuffix(k.KeyData, "=") || len(k.KeyData)%4 == 0 {
		return base64.StdEncoding.DecodeString(k.KeyData)
	}
	return base64.RawStdEncoding.DecodeString(k.KeyData)
}

// HasValidShape checks the fields that do not depend on time: the key is
// base64 of fewer than MaxKeyBytes bytes, the rolling period
// is in (0, MaxRollingPeriod] and the risk level is in [0, MaxTransmissionRiskLevel].
func (k Key) HasValidShape() bool {
	raw, err := k.DecodedKey()
	if err != nil || len(raw) >= MaxKeyBytes {
		return false
	}
	if k.RollingPeriod <= 0 || k.RollingPeriod > MaxRollingPeriod {
		return false
	}
	return k.TransmissionRiskLevel >= 0 && k.TransmissionRiskLevel <= MaxTransmissionRiskLevel
}

// ValidKeys returns the keys of all submissions that are valid at ref.
func ValidKeys(submissions []Submission, ref time.Time) []Key {
	var out []Key
	for _, s := range submissions {
		for _, k := range s.Keys {
			if k.IsValidAt(ref) {
				out = append(out, k)
			}
		}
	}
	return out
}
