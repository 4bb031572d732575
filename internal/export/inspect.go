package export

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// Summary is a readable view of a published archive.
type Summary struct {
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Region     string             `json:"region,omitempty"`
	Keys       []SummaryKey       `json:"keys"`
	Signatures []SummarySignature `json:"signatures"`
}

type SummaryKey struct {
	KeyData               string `json:"keyData"`
	RollingStartNumber    int32  `json:"rollingStartNumber"`
	RollingPeriod         int32  `json:"rollingPeriod"`
	TransmissionRiskLevel int32  `json:"transmissionRiskLevel"`
	DaysSinceOnset        *int32 `json:"daysSinceOnsetOfSymptoms,omitempty"`
}

type SummarySignature struct {
	VerificationKeyID      string `json:"verificationKeyId"`
	VerificationKeyVersion string `json:"verificationKeyVersion"`
	SignatureAlgorithm     string `json:"signatureAlgorithm"`
	BatchNum               int32  `json:"batchNum"`
	BatchSize              int32  `json:"batchSize"`

	// Verified is set only when a public key was supplied.
	Verified *bool `json:"verified,omitempty"`
}

// Inspect unpacks a zip archive and decodes both entries. When pub is not
// nil every signature is checked against export.bin.
func Inspect(data []byte, pub *ecdsa.PublicKey) (*Summary, error) {
	bin, sig, err := Unzip(data)
	if err != nil {
		return nil, err
	}
	exp, err := Parse(bin)
	if err != nil {
		return nil, err
	}
	list, err := ParseSignatureList(sig)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Start:      time.Unix(int64(exp.StartTimestamp), 0).UTC(),
		End:        time.Unix(int64(exp.EndTimestamp), 0).UTC(),
		Region:     exp.Region,
		Keys:       make([]SummaryKey, 0, len(exp.Keys)),
		Signatures: make([]SummarySignature, 0, len(list.Signatures)),
	}
	for _, k := range exp.Keys {
		s.Keys = append(s.Keys, SummaryKey{
			KeyData:               base64.StdEncoding.EncodeToString(k.KeyData),
			RollingStartNumber:    k.RollingStartIntervalNumber,
			RollingPeriod:         k.RollingPeriod,
			TransmissionRiskLevel: k.TransmissionRiskLevel,
			DaysSinceOnset:        k.DaysSinceOnsetOfSymptoms,
		})
	}

	digest := sha256.Sum256(bin)
	for _, ts := range list.Signatures {
		out := SummarySignature{
			VerificationKeyID:      ts.SignatureInfo.VerificationKeyID,
			VerificationKeyVersion: ts.SignatureInfo.VerificationKeyVersion,
			SignatureAlgorithm:     ts.SignatureInfo.SignatureAlgorithm,
			BatchNum:               ts.BatchNum,
			BatchSize:              ts.BatchSize,
		}
		if pub != nil {
			ok := ecdsa.VerifyASN1(pub, digest[:], ts.Signature)
			out.Verified = &ok
		}
		s.Signatures = append(s.Signatures, out)
	}
	return s, nil
}
