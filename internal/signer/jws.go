package signer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const (
	jwsHeader = `{"alg":"ES256"}`

	// p256 scalars are 32 bytes; ES256 signatures are r||s.
	es256ScalarSize = 32
)

// segmenter provides base64url encoding without padding.
var segmenter = &jwt.Token{}

// JWS produces compact ES256 JSON Web Signatures.
type JWS struct {
	signer Signer
}

func NewJWS(signer Signer) *JWS {
	return &JWS{signer: signer}
}

// Sign returns header.payload.signature for the given payload.
func (j *JWS) Sign(ctx context.Context, payload []byte) (string, error) {
	signingString := segmenter.EncodeSegment([]byte(jwsHeader)) + "." + segmenter.EncodeSegment(payload)

	sig, err := j.signer.Sign(ctx, []byte(signingString))
	if err != nil {
		return "", fmt.Errorf("jws sign: %w", err)
	}

	raw, err := toJOSE(sig, es256ScalarSize)
	if err != nil {
		return "", err
	}

	return signingString + "." + segmenter.EncodeSegment(raw), nil
}

// toJOSE converts an ASN.1 DER ECDSA signature to r||s. A signature that
// is not DER but already has the fixed width is returned unchanged.
func toJOSE(sig []byte, size int) ([]byte, error) {
	var (
		r, s  big.Int
		inner cryptobyte.String
	)
	input := cryptobyte.String(sig)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(&r) ||
		!inner.ReadASN1Integer(&s) ||
		!inner.Empty() {
		if len(sig) == 2*size {
			return sig, nil
		}
		return nil, fmt.Errorf("%w: not an ASN.1 ECDSA signature", common.ErrInvalidSignature)
	}

	if r.Sign() <= 0 || s.Sign() <= 0 || r.BitLen() > size*8 || s.BitLen() > size*8 {
		return nil, fmt.Errorf("%w: scalar out of range", common.ErrInvalidSignature)
	}

	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out, nil
}
