// Package cloud builds the shared AWS SDK configuration.
package cloud

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadDefaultConfig is swapped in tests.
var loadDefaultConfig = config.LoadDefaultConfig

// LoadAWSConfig resolves AWS settings for region. A non-empty endpoint
// points every client at an emulator such as LocalStack; in that case
// static placeholder credentials are used unless real ones are present in
// the environment.
func LoadAWSConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
		if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			))
		}
	}

	cfg, err := loadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
