package ensureserviceuser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

const (
	servicePath = "/scality-internal/"
)

// IAMAPI is the subset of the IAM client used to provision the service user
type IAMAPI interface {
	GetUser(ctx context.Context, params *iam.GetUserInput, optFns ...func(*iam.Options)) (*iam.GetUserOutput, error)
	CreateUser(ctx context.Context, params *iam.CreateUserInput, optFns ...func(*iam.Options)) (*iam.CreateUserOutput, error)
	PutUserPolicy(ctx context.Context, params *iam.PutUserPolicyInput, optFns ...func(*iam.Options)) (*iam.PutUserPolicyOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
}

// Request describes the service user that uploads scan reports
type Request struct {
	ServiceName string
	Bucket      string
	Prefix      string
}

// Apply ensures a service user exists in IAM with permission to upload
// reports under the request's bucket and prefix.
// It creates the user, attaches the policy, and ensures an access key exists.
// Returns the access key information.
func Apply(ctx context.Context, iamClient IAMAPI, req Request) (*Result, error) {
	if req.ServiceName == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}
	if req.Bucket == "" {
		return nil, fmt.Errorf("report bucket cannot be empty")
	}

	if err := ensureUser(ctx, iamClient, req.ServiceName); err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	if err := ensurePolicy(ctx, iamClient, req); err != nil {
		return nil, fmt.Errorf("failed to ensure policy: %w", err)
	}

	result, err := ensureAccessKey(ctx, iamClient, req.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure access key: %w", err)
	}

	return result, nil
}

// PolicyDocument returns the inline policy allowing report uploads under bucket/prefix
func PolicyDocument(bucket, prefix string) (string, error) {
	policyDoc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":   "Allow",
				"Action":   "s3:PutObject",
				"Resource": fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, prefix),
			},
		},
	}

	policyJSON, err := json.Marshal(policyDoc)
	if err != nil {
		return "", fmt.Errorf("marshal policy document failed: %w", err)
	}
	return string(policyJSON), nil
}

// ensureUser creates the user if it doesn't exist, or validates the existing user's path.
func ensureUser(ctx context.Context, iamClient IAMAPI, serviceName string) error {
	getUserOutput, err := iamClient.GetUser(ctx, &iam.GetUserInput{
		UserName: aws.String(serviceName),
	})

	if err == nil {
		if getUserOutput.User.Path != nil && *getUserOutput.User.Path != servicePath {
			return fmt.Errorf("user already exists with conflicting path: %s", *getUserOutput.User.Path)
		}
		return nil
	}

	var noSuchEntity *types.NoSuchEntityException
	if !errors.As(err, &noSuchEntity) {
		return fmt.Errorf("get user failed: %w", err)
	}

	_, err = iamClient.CreateUser(ctx, &iam.CreateUserInput{
		UserName: aws.String(serviceName),
		Path:     aws.String(servicePath),
	})
	if err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}

	return nil
}

// ensurePolicy puts the upload policy, replacing any previous version.
func ensurePolicy(ctx context.Context, iamClient IAMAPI, req Request) error {
	policyJSON, err := PolicyDocument(req.Bucket, req.Prefix)
	if err != nil {
		return err
	}

	_, err = iamClient.PutUserPolicy(ctx, &iam.PutUserPolicyInput{
		UserName:       aws.String(req.ServiceName),
		PolicyName:     aws.String(req.ServiceName),
		PolicyDocument: aws.String(policyJSON),
	})
	if err != nil {
		return fmt.Errorf("put user policy failed: %w", err)
	}

	return nil
}

// ensureAccessKey creates an access key if none exists, or returns the existing key ID.
func ensureAccessKey(ctx context.Context, iamClient IAMAPI, serviceName string) (*Result, error) {
	listOutput, err := iamClient.ListAccessKeys(ctx, &iam.ListAccessKeysInput{
		UserName: aws.String(serviceName),
	})
	if err != nil {
		return nil, fmt.Errorf("list access keys failed: %w", err)
	}

	if len(listOutput.AccessKeyMetadata) > 0 {
		return &Result{
			AccessKeyId:     aws.ToString(listOutput.AccessKeyMetadata[0].AccessKeyId),
			SecretAccessKey: nil,
		}, nil
	}

	createOutput, err := iamClient.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: aws.String(serviceName),
	})
	if err != nil {
		return nil, fmt.Errorf("create access key failed: %w", err)
	}

	return &Result{
		AccessKeyId:     aws.ToString(createOutput.AccessKey.AccessKeyId),
		SecretAccessKey: createOutput.AccessKey.SecretAccessKey,
	}, nil
}
