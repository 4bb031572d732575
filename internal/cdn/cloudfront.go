// Package cdn invalidates cached export paths after a distribution run.
package cdn

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/google/uuid"
)

// Invalidator drops cached objects matching a path pattern.
type Invalidator interface {
	Invalidate(ctx context.Context, distributionID, pattern string) error
}

type cloudFrontAPI interface {
	CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// CloudFront issues one invalidation request per pattern.
type CloudFront struct {
	client       cloudFrontAPI
	newReference func() string
}

func NewCloudFront(client cloudFrontAPI) *CloudFront {
	return &CloudFront{client: client, newReference: uuid.NewString}
}

func NewCloudFrontFromConfig(cfg aws.Config) *CloudFront {
	return NewCloudFront(cloudfront.NewFromConfig(cfg))
}

func (c *CloudFront) Invalidate(ctx context.Context, distributionID, pattern string) error {
	_, err := c.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(c.newReference()),
			Paths: &types.Paths{
				Quantity: aws.Int32(1),
				Items:    []string{pattern},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("invalidate %s on %s: %w", pattern, distributionID, err)
	}
	return nil
}

// Noop skips invalidation; used when no distribution is configured.
type Noop struct{}

func (Noop) Invalidate(context.Context, string, string) error { return nil }
