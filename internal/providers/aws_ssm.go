package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/acctexport/pkg/provider"
)

// SSMClientAPI is the part of the SSM client the store calls.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// AWSSSMProvider reads SSM Parameter Store parameters. SecureString
// parameters are decrypted unless with_decryption is false.
type AWSSSMProvider struct {
	name           string
	region         string
	prefix         string
	withDecryption bool
	client         SSMClientAPI
}

// SSMOption configures the store at construction.
type SSMOption func(*AWSSSMProvider)

// WithSSMClient replaces the SDK client.
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(p *AWSSSMProvider) {
		p.client = client
	}
}

// NewAWSSSMProvider creates the store. Recognized options are region,
// profile, parameter_prefix and with_decryption, plus the static
// credential keys of the Secrets Manager store.
func NewAWSSSMProvider(name string, cfg map[string]interface{}, opts ...SSMOption) (*AWSSSMProvider, error) {
	p := &AWSSSMProvider{
		name:           name,
		region:         stringOpt(cfg, "region", "us-east-1"),
		prefix:         stringOpt(cfg, "parameter_prefix", ""),
		withDecryption: boolOpt(cfg, "with_decryption", true),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil {
		return p, nil
	}

	awsCfg, err := loadAWSConfig(cfg, p.region)
	if err != nil {
		return nil, err
	}
	p.client = ssm.NewFromConfig(awsCfg)
	return p, nil
}

// Name returns the store name
func (p *AWSSSMProvider) Name() string {
	return p.name
}

// Resolve fetches one parameter. Reference.Version selects a parameter
// version ("name:3").
func (p *AWSSSMProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	name := p.prefix + ref.Key
	if ref.Version != "" && ref.Version != "latest" {
		name += ":" + ref.Version
	}

	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(p.withDecryption),
	})
	if err != nil {
		var nf *types.ParameterNotFound
		var nv *types.ParameterVersionNotFound
		if errors.As(err, &nf) || errors.As(err, &nv) {
			return provider.SecretValue{}, &provider.NotFoundError{Provider: p.name, Key: name}
		}
		if isAWSAuthError(err) {
			return provider.SecretValue{}, &provider.AuthError{Provider: p.name, Message: err.Error()}
		}
		return provider.SecretValue{}, fmt.Errorf("AWS SSM error: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return provider.SecretValue{}, fmt.Errorf("parameter %q has no value", name)
	}

	sv := provider.SecretValue{
		Value:   *out.Parameter.Value,
		Version: strconv.FormatInt(out.Parameter.Version, 10),
		Metadata: map[string]string{
			"parameter": name,
			"type":      string(out.Parameter.Type),
		},
	}
	if out.Parameter.LastModifiedDate != nil {
		sv.UpdatedAt = *out.Parameter.LastModifiedDate
	}
	return sv, nil
}

// Describe looks the parameter up with DescribeParameters.
func (p *AWSSSMProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	name := p.prefix + ref.Key
	out, err := p.client.DescribeParameters(ctx, &ssm.DescribeParametersInput{
		ParameterFilters: []types.ParameterStringFilter{{
			Key:    aws.String("Name"),
			Option: aws.String("Equals"),
			Values: []string{name},
		}},
	})
	if err != nil {
		return provider.Metadata{}, fmt.Errorf("AWS SSM error: %w", err)
	}
	if len(out.Parameters) == 0 {
		return provider.Metadata{Exists: false}, nil
	}

	param := out.Parameters[0]
	md := provider.Metadata{
		Exists:  true,
		Version: strconv.FormatInt(param.Version, 10),
		Type:    string(param.Type),
		Tags:    map[string]string{"parameter": name},
	}
	if param.LastModifiedDate != nil {
		md.UpdatedAt = *param.LastModifiedDate
	}
	return md, nil
}

// Capabilities returns the store capabilities
func (p *AWSSSMProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsVersioning: true,
		SupportsMetadata:   true,
		RequiresAuth:       true,
		AuthMethods:        []string{"iam", "environment", "shared_config"},
	}
}

// Validate issues a one-item DescribeParameters call to check credentials.
func (p *AWSSSMProvider) Validate(ctx context.Context) error {
	if _, err := p.client.DescribeParameters(ctx, &ssm.DescribeParametersInput{MaxResults: aws.Int32(1)}); err != nil {
		return &provider.AuthError{Provider: p.name, Message: err.Error()}
	}
	return nil
}
