// Package timeseries persists canonical health records to an append-only,
// dimensioned time-series store (Timestream) with a bounded value size,
// offloading full payloads to S3 and reconstructing them on read.
package timeseries

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/timestreamquery"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite"
)

// Clients bundles the process-wide store clients. They are constructed once
// at startup and injected into the writer, reader, and blob store; no
// component holds hidden global client state.
type Clients struct {
	Write *timestreamwrite.Client
	Query *timestreamquery.Client
	S3    *s3.Client
}

// NewClients builds the AWS clients with the boundary policy applied once:
// 3 attempts with adaptive backoff and a 5s HTTP timeout. endpoint overrides
// the AWS endpoint for local development (e.g. localstack).
func NewClients(ctx context.Context, region, endpoint string) (*Clients, error) {
	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(region),
		awscfg.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewAdaptiveMode(), 3)
		}),
		awscfg.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, r string, _ ...any) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint, HostnameImmutable: true, PartitionID: "aws"}, nil
		})
		opts = append(opts, awscfg.WithEndpointResolverWithOptions(resolver))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &Clients{
		Write: timestreamwrite.NewFromConfig(cfg),
		Query: timestreamquery.NewFromConfig(cfg),
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.UsePathStyle = true
			}
		}),
	}, nil
}
