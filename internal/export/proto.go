package export

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// SignatureInfo identifies the key that signed an export.
type SignatureInfo struct {
	AppBundleID            string
	AndroidPackage         string
	VerificationKeyVersion string
	VerificationKeyID      string
	SignatureAlgorithm     string
}

// TemporaryExposureKey is the wire form of a key inside an export.
type TemporaryExposureKey struct {
	KeyData                    []byte
	TransmissionRiskLevel      int32
	RollingStartIntervalNumber int32
	RollingPeriod              int32
	DaysSinceOnsetOfSymptoms   *int32
}

// TemporaryExposureKeyExport is the message stored in export.bin after the header.
type TemporaryExposureKeyExport struct {
	StartTimestamp uint64
	EndTimestamp   uint64
	Region         string
	BatchNum       int32
	BatchSize      int32
	SignatureInfos []SignatureInfo
	Keys           []TemporaryExposureKey
}

// TEKSignature is one detached signature over export.bin.
type TEKSignature struct {
	SignatureInfo SignatureInfo
	BatchNum      int32
	BatchSize     int32
	Signature     []byte
}

// TEKSignatureList is the message stored in export.sig.
type TEKSignatureList struct {
	Signatures []TEKSignature
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func (m *SignatureInfo) marshal(b []byte) []byte {
	b = appendString(b, 1, m.AppBundleID)
	b = appendString(b, 2, m.AndroidPackage)
	b = appendString(b, 3, m.VerificationKeyVersion)
	b = appendString(b, 4, m.VerificationKeyID)
	b = appendString(b, 5, m.SignatureAlgorithm)
	return b
}

func (m *TemporaryExposureKey) marshal(b []byte) []byte {
	b = appendBytes(b, 1, m.KeyData)
	b = appendInt32(b, 2, m.TransmissionRiskLevel)
	b = appendInt32(b, 3, m.RollingStartIntervalNumber)
	b = appendInt32(b, 4, m.RollingPeriod)
	if m.DaysSinceOnsetOfSymptoms != nil {
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(*m.DaysSinceOnsetOfSymptoms)))
	}
	return b
}

// Marshal encodes the export without the file header.
func (m *TemporaryExposureKeyExport) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, m.StartTimestamp)
	b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, m.EndTimestamp)
	b = appendString(b, 3, m.Region)
	b = appendInt32(b, 4, m.BatchNum)
	b = appendInt32(b, 5, m.BatchSize)
	for i := range m.SignatureInfos {
		b = appendBytes(b, 6, m.SignatureInfos[i].marshal(nil))
	}
	for i := range m.Keys {
		b = appendBytes(b, 7, m.Keys[i].marshal(nil))
	}
	return b
}

// Marshal encodes the signature list.
func (m *TEKSignatureList) Marshal() []byte {
	var b []byte
	for i := range m.Signatures {
		s := &m.Signatures[i]
		var sb []byte
		sb = appendBytes(sb, 1, s.SignatureInfo.marshal(nil))
		sb = appendInt32(sb, 2, s.BatchNum)
		sb = appendInt32(sb, 3, s.BatchSize)
		sb = appendBytes(sb, 4, s.Signature)
		b = appendBytes(b, 1, sb)
	}
	return b
}

// fieldFunc consumes the value of one field and returns the number of bytes
// read. Returning 0 skips the field as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int32(v)
	}
	return n
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = append([]byte{}, v...)
	}
	return n
}

func (m *SignatureInfo) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.AppBundleID), nil
		case 2:
			return consumeString(typ, b, &m.AndroidPackage), nil
		case 3:
			return consumeString(typ, b, &m.VerificationKeyVersion), nil
		case 4:
			return consumeString(typ, b, &m.VerificationKeyID), nil
		case 5:
			return consumeString(typ, b, &m.SignatureAlgorithm), nil
		}
		return 0, nil
	})
}

func (m *TemporaryExposureKey) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.KeyData), nil
		case 2:
			return consumeInt32(typ, b, &m.TransmissionRiskLevel), nil
		case 3:
			return consumeInt32(typ, b, &m.RollingStartIntervalNumber), nil
		case 4:
			return consumeInt32(typ, b, &m.RollingPeriod), nil
		case 6:
			if typ != protowire.VarintType {
				return 0, nil
			}
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 {
				d := int32(protowire.DecodeZigZag(v))
				m.DaysSinceOnsetOfSymptoms = &d
			}
			return n, nil
		}
		return 0, nil
	})
}

// Unmarshal decodes an export body (without the file header).
func (m *TemporaryExposureKeyExport) Unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 2:
			if typ != protowire.Fixed64Type {
				return 0, nil
			}
			v, n := protowire.ConsumeFixed64(b)
			if num == 1 {
				m.StartTimestamp = v
			} else {
				m.EndTimestamp = v
			}
			return n, nil
		case 3:
			return consumeString(typ, b, &m.Region), nil
		case 4:
			return consumeInt32(typ, b, &m.BatchNum), nil
		case 5:
			return consumeInt32(typ, b, &m.BatchSize), nil
		case 6:
			var raw []byte
			n := consumeBytes(typ, b, &raw)
			if n <= 0 {
				return n, nil
			}
			var info SignatureInfo
			if err := info.unmarshal(raw); err != nil {
				return 0, fmt.Errorf("signature_infos: %w", err)
			}
			m.SignatureInfos = append(m.SignatureInfos, info)
			return n, nil
		case 7:
			var raw []byte
			n := consumeBytes(typ, b, &raw)
			if n <= 0 {
				return n, nil
			}
			var key TemporaryExposureKey
			if err := key.unmarshal(raw); err != nil {
				return 0, fmt.Errorf("keys: %w", err)
			}
			m.Keys = append(m.Keys, key)
			return n, nil
		}
		return 0, nil
	})
}

// Unmarshal decodes a signature list.
func (m *TEKSignatureList) Unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		var raw []byte
		n := consumeBytes(typ, b, &raw)
		if n <= 0 {
			return n, nil
		}

		var sig TEKSignature
		err := walk(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				var info []byte
				n := consumeBytes(typ, b, &info)
				if n <= 0 {
					return n, nil
				}
				return n, sig.SignatureInfo.unmarshal(info)
			case 2:
				return consumeInt32(typ, b, &sig.BatchNum), nil
			case 3:
				return consumeInt32(typ, b, &sig.BatchSize), nil
			case 4:
				return consumeBytes(typ, b, &sig.Signature), nil
			}
			return 0, nil
		})
		if err != nil {
			return 0, fmt.Errorf("signatures: %w", err)
		}
		m.Signatures = append(m.Signatures, sig)
		return n, nil
	})
}
