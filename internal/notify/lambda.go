package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// LambdaAPI is the subset of *lambda.Client used by LambdaDispatcher.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaDispatcher implements domain.ConfirmationDispatcher with synchronous
// Lambda invocations.
type LambdaDispatcher struct {
	api LambdaAPI
}

// NewLambdaDispatcher wraps a Lambda client.
func NewLambdaDispatcher(api LambdaAPI) *LambdaDispatcher {
	return &LambdaDispatcher{api: api}
}

// NewLambdaDispatcherFromConfig builds the Lambda client from an AWS config.
func NewLambdaDispatcherFromConfig(cfg aws.Config) *LambdaDispatcher {
	return NewLambdaDispatcher(lambda.NewFromConfig(cfg))
}

// Invoke runs the function and returns its response payload. A function
// error reported by Lambda (unhandled exception in the handler) is returned
// as an error together with the payload text.
func (d *LambdaDispatcher) Invoke(ctx context.Context, functionName string, payload []byte) ([]byte, error) {
	out, err := d.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(functionName),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", functionName, err)
	}
	if out.FunctionError != nil {
		return out.Payload, fmt.Errorf("invoke %s: function error %s: %s", functionName, aws.ToString(out.FunctionError), out.Payload)
	}
	return out.Payload, nil
}
