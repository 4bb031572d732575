package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return k
}

func TestLocalSigner_SignsSHA256Digest(t *testing.T) {
	k := newKey(t)
	s := NewLocalSigner(k)

	sig, err := s.Sign(context.Background(), []byte("payload"))
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("payload"))
	assert.True(t, ecdsa.VerifyASN1(s.Public(), digest[:], sig))
}

func TestLoadLocalSigner(t *testing.T) {
	k := newKey(t)
	dir := t.TempDir()

	pkcs8, err := x509.MarshalPKCS8PrivateKey(k)
	require.NoError(t, err)
	sec1, err := x509.MarshalECPrivateKey(k)
	require.NoError(t, err)

	for name, block := range map[string]*pem.Block{
		"pkcs8.pem": {Type: "PRIVATE KEY", Bytes: pkcs8},
		"sec1.pem":  {Type: "EC PRIVATE KEY", Bytes: sec1},
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

		s, err := LoadLocalSigner(path)
		require.NoError(t, err, name)
		assert.True(t, s.Public().Equal(&k.PublicKey), name)
	}

	_, err = LoadLocalSigner(filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)

	_, err = ParsePrivateKey([]byte("not pem"))
	assert.Error(t, err)
}

func TestParsePublicKey(t *testing.T) {
	k := newKey(t)

	pkix, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	pub, err := ParsePublicKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix}))
	require.NoError(t, err)
	assert.True(t, pub.Equal(&k.PublicKey))

	sec1, err := x509.MarshalECPrivateKey(k)
	require.NoError(t, err)
	pub, err = ParsePublicKey(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1}))
	require.NoError(t, err)
	assert.True(t, pub.Equal(&k.PublicKey))

	_, err = ParsePublicKey([]byte("not pem"))
	assert.Error(t, err)

	_, err = ParsePublicKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1, 2, 3}}))
	assert.Error(t, err)
}

type fakeKMS struct {
	kmsAPI
	key   *ecdsa.PrivateKey
	input *kms.SignInput
	err   error
}

func (f *fakeKMS) Sign(_ context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	sig, err := ecdsa.SignASN1(rand.Reader, f.key, in.Message)
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: sig}, nil
}

func TestKMSSigner(t *testing.T) {
	k := newKey(t)
	fake := &fakeKMS{key: k}
	s := NewKMSSigner(fake, "arn:aws:kms:eu-west-2:123:key/abc")

	sig, err := s.Sign(context.Background(), []byte("export"))
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("export"))
	assert.Equal(t, digest[:], fake.input.Message)
	assert.Equal(t, types.MessageTypeDigest, fake.input.MessageType)
	assert.Equal(t, types.SigningAlgorithmSpecEcdsaSha256, fake.input.SigningAlgorithm)
	assert.Equal(t, "arn:aws:kms:eu-west-2:123:key/abc", *fake.input.KeyId)
	assert.True(t, ecdsa.VerifyASN1(&k.PublicKey, digest[:], sig))
	assert.Equal(t, "arn:aws:kms:eu-west-2:123:key/abc", s.KeyID())

	fake.err = errors.New("throttled")
	_, err = s.Sign(context.Background(), []byte("export"))
	assert.ErrorContains(t, err, "throttled")
}

func TestJWS_VerifiesAsES256(t *testing.T) {
	k := newKey(t)
	j := NewJWS(NewLocalSigner(k))

	payload := []byte(`[{"keyData":"ESIzRFVmd4iZqrvM3e7/AA==","rollingStartNumber":2657952}]`)
	token, err := j.Sign(context.Background(), payload)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"ES256"}`, string(header))

	body, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Equal(t, payload, body)

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.Len(t, sig, 64)

	err = jwt.SigningMethodES256.Verify(parts[0]+"."+parts[1], sig, &k.PublicKey)
	assert.NoError(t, err)
}

type staticSigner []byte

func (s staticSigner) Sign(context.Context, []byte) ([]byte, error) { return s, nil }

func TestJWS_RawSignaturePassesThrough(t *testing.T) {
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	token, err := NewJWS(staticSigner(raw)).Sign(context.Background(), []byte("x"))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Equal(t, raw, sig)
}

func TestJWS_RejectsMalformedSignature(t *testing.T) {
	_, err := NewJWS(staticSigner([]byte{0x30, 0x01})).Sign(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, common.ErrInvalidSignature)
}

func TestDatedSigner_Headers(t *testing.T) {
	k := newKey(t)
	d := NewDatedSigner(NewLocalSigner(k), "key-1")
	d.now = func() time.Time { return time.Date(2020, 7, 16, 1, 46, 0, 0, time.UTC) }

	h, err := d.Headers(context.Background(), []byte("zip"))
	require.NoError(t, err)

	assert.Equal(t, "Thu, 16 Jul 2020 01:46:00 GMT", h[SignatureDateHeader])
	require.True(t, strings.HasPrefix(h[SignatureHeader], `keyId="key-1",signature="`))

	b64 := strings.TrimSuffix(strings.TrimPrefix(h[SignatureHeader], `keyId="key-1",signature="`), `"`)
	sig, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("Thu, 16 Jul 2020 01:46:00 GMT:zip"))
	assert.True(t, ecdsa.VerifyASN1(&k.PublicKey, digest[:], sig))
}
