// Package export builds the signed key export files published to devices:
// export.bin (a fixed header followed by a TemporaryExposureKeyExport
// message) and export.sig (a TEKSignatureList over export.bin).
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/tek"
)

// Header prefixes every export.bin.
const Header = "EK Export v1    "

// AlgorithmECDSAP256SHA256 is the OID of ECDSA with SHA-256.
const AlgorithmECDSAP256SHA256 = "1.2.840.10045.4.3.2"

// Signer produces an ASN.1 DER ECDSA P-256/SHA-256 signature over data.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// Batch holds the keys of one period and the two files derived from them.
type Batch struct {
	Keys      []tek.Key
	Export    []byte
	Signature []byte
}

// Builder turns key lists into signed exports.
type Builder struct {
	signer Signer
	info   SignatureInfo
}

// NewBuilder returns a Builder that signs with signer and stamps every file
// with info. An empty SignatureAlgorithm defaults to ECDSA P-256/SHA-256.
func NewBuilder(signer Signer, info SignatureInfo) *Builder {
	if info.SignatureAlgorithm == "" {
		info.SignatureAlgorithm = AlgorithmECDSAP256SHA256
	}
	return &Builder{signer: signer, info: info}
}

// Build encodes keys in the given order and signs the result. The export
// covers the retention period ending at now.
func (b *Builder) Build(ctx context.Context, keys []tek.Key, now time.Time) (*Batch, error) {
	wire := make([]TemporaryExposureKey, 0, len(keys))
	for _, k := range keys {
		raw, err := k.DecodedKey()
		if err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		var dso int32
		if k.DaysSinceOnset != nil {
			dso = *k.DaysSinceOnset
		}
		wire = append(wire, TemporaryExposureKey{
			KeyData:                    raw,
			TransmissionRiskLevel:      k.TransmissionRiskLevel,
			RollingStartIntervalNumber: int32(k.RollingStartNumber),
			RollingPeriod:              k.RollingPeriod,
			DaysSinceOnsetOfSymptoms:   &dso,
		})
	}

	msg := TemporaryExposureKeyExport{
		StartTimestamp: uint64(now.Add(-tek.RetentionPeriod).Unix()),
		EndTimestamp:   uint64(now.Unix()),
		BatchNum:       1,
		BatchSize:      1,
		SignatureInfos: []SignatureInfo{b.info},
		Keys:           wire,
	}

	bin := append([]byte(Header), msg.Marshal()...)

	sig, err := b.signer.Sign(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("sign export: %w", err)
	}

	list := TEKSignatureList{Signatures: []TEKSignature{{
		SignatureInfo: b.info,
		BatchNum:      1,
		BatchSize:     1,
		Signature:     sig,
	}}}

	return &Batch{Keys: keys, Export: bin, Signature: list.Marshal()}, nil
}

// Parse decodes an export.bin, checking its header.
func Parse(bin []byte) (*TemporaryExposureKeyExport, error) {
	if !bytes.HasPrefix(bin, []byte(Header)) {
		return nil, errors.New("missing export header")
	}
	var m TemporaryExposureKeyExport
	if err := m.Unmarshal(bin[len(Header):]); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}
	return &m, nil
}

// ParseSignatureList decodes an export.sig.
func ParseSignatureList(sig []byte) (*TEKSignatureList, error) {
	var m TEKSignatureList
	if err := m.Unmarshal(sig); err != nil {
		return nil, fmt.Errorf("parse signature list: %w", err)
	}
	return &m, nil
}
