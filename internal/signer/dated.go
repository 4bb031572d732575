package signer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

const (
	SignatureHeader     = "Signature"
	SignatureDateHeader = "Signature-Date"
)

// DatedSigner computes the signature headers attached to published
// objects. The signed content is "<date>:" followed by the object body.
type DatedSigner struct {
	signer Signer
	keyID  string
	now    func() time.Time
}

func NewDatedSigner(signer Signer, keyID string) *DatedSigner {
	return &DatedSigner{signer: signer, keyID: keyID, now: time.Now}
}

// Headers signs content and returns the Signature and Signature-Date values.
func (d *DatedSigner) Headers(ctx context.Context, content []byte) (map[string]string, error) {
	date := d.now().UTC().Format(http.TimeFormat)

	msg := make([]byte, 0, len(date)+1+len(content))
	msg = append(msg, date...)
	msg = append(msg, ':')
	msg = append(msg, content...)

	sig, err := d.signer.Sign(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("dated sign: %w", err)
	}

	return map[string]string{
		SignatureHeader:     fmt.Sprintf(`keyId="%s",signature="%s"`, d.keyID, base64.StdEncoding.EncodeToString(sig)),
		SignatureDateHeader: date,
	}, nil
}
