package signer

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

type kmsAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KMSSigner delegates signing to an asymmetric ECC_NIST_P256 KMS key.
// Only the SHA-256 digest leaves the process.
type KMSSigner struct {
	client kmsAPI
	keyID  string
}

func NewKMSSigner(client kmsAPI, keyID string) *KMSSigner {
	return &KMSSigner{client: client, keyID: keyID}
}

// NewKMSSignerFromConfig builds the KMS client from an AWS config.
func NewKMSSignerFromConfig(cfg aws.Config, keyID string, optFns ...func(*kms.Options)) *KMSSigner {
	return NewKMSSigner(kms.NewFromConfig(cfg, optFns...), keyID)
}

func (s *KMSSigner) KeyID() string {
	return s.keyID
}

func (s *KMSSigner) Sign(ctx context.Context, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest[:],
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("kms sign: %w", err)
	}
	return out.Signature, nil
}
