// Package secrets resolves credentials kept in AWS Secrets Manager.
package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
)

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads string secrets by name or ARN.
type SecretsManager struct {
	client secretsManagerAPI
}

func NewSecretsManager(client secretsManagerAPI) *SecretsManager {
	return &SecretsManager{client: client}
}

func NewSecretsManagerFromConfig(cfg aws.Config) *SecretsManager {
	return NewSecretsManager(secretsmanager.NewFromConfig(cfg))
}

// Get returns the current value of the secret. Binary secrets are returned
// as their raw bytes.
func (s *SecretsManager) Get(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	if len(out.SecretBinary) > 0 {
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %s: %w", name, common.ErrorNotFound)
}
