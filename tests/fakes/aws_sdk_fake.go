package fakes

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeSecretsManagerClient answers GetSecretValue, DescribeSecret and
// ListSecrets from memory.
type FakeSecretsManagerClient struct {
	Secrets map[string]string
	Errors  map[string]error

	// ListErr is returned by ListSecrets.
	ListErr error
}

// NewFakeSecretsManagerClient returns an empty client.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{Secrets: map[string]string{}, Errors: map[string]error{}}
}

// AddSecretString stores a string secret with version "v1".
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.Secrets[name] = value
}

// AddError makes every call on name fail with err.
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.Errors[name] = err
}

func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{Message: aws.String("Secrets Manager can't find the specified secret.")}
	}
	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return &secretsmanager.GetSecretValueOutput{
		Name:          params.SecretId,
		SecretString:  aws.String(value),
		VersionId:     aws.String("v1"),
		VersionStages: []string{"AWSCURRENT"},
		CreatedDate:   &created,
	}, nil
}

func (f *FakeSecretsManagerClient) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, &smtypes.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.DescribeSecretOutput{
		Name:               params.SecretId,
		VersionIdsToStages: map[string][]string{"v1": {"AWSCURRENT"}},
	}, nil
}

func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return &secretsmanager.ListSecretsOutput{}, nil
}

// FakeSSMClient answers GetParameter and DescribeParameters from memory.
type FakeSSMClient struct {
	Parameters map[string]string
	Errors     map[string]error

	// Decrypted records the WithDecryption flag of the last GetParameter.
	Decrypted bool
}

// NewFakeSSMClient returns an empty client.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{Parameters: map[string]string{}, Errors: map[string]error{}}
}

// AddParameter stores a SecureString parameter at version 3.
func (f *FakeSSMClient) AddParameter(name, value string) {
	f.Parameters[name] = value
}

func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(params.Name)
	f.Decrypted = aws.ToBool(params.WithDecryption)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	base, selector, _ := strings.Cut(name, ":")
	value, ok := f.Parameters[base]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("parameter not found")}
	}
	if selector != "" && selector != "3" {
		return nil, &ssmtypes.ParameterVersionNotFound{Message: aws.String("version not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{
		Name:    aws.String(base),
		Value:   aws.String(value),
		Type:    ssmtypes.ParameterTypeSecureString,
		Version: 3,
	}}, nil
}

func (f *FakeSSMClient) DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	out := &ssm.DescribeParametersOutput{}
	for _, filter := range params.ParameterFilters {
		for _, name := range filter.Values {
			if _, ok := f.Parameters[name]; ok {
				out.Parameters = append(out.Parameters, ssmtypes.ParameterMetadata{
					Name:    aws.String(name),
					Type:    ssmtypes.ParameterTypeSecureString,
					Version: 3,
				})
			}
		}
	}
	return out, nil
}
