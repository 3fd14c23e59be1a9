package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"

	"github.com/systmms/acctexport/pkg/provider"
)

// SecretsManagerClientAPI is the part of the Secrets Manager client the
// store calls.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// AWSSecretsManagerProvider reads AWS Secrets Manager secrets.
//
// Keys are secret names or ARNs. A "#.path" suffix (or Reference.Field)
// selects a member of a JSON secret, e.g. "prod/acme#.password".
type AWSSecretsManagerProvider struct {
	name   string
	region string
	client SecretsManagerClientAPI
}

// SecretsManagerOption configures the store at construction.
type SecretsManagerOption func(*AWSSecretsManagerProvider)

// WithSecretsManagerClient replaces the SDK client.
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(p *AWSSecretsManagerProvider) {
		p.client = client
	}
}

// NewAWSSecretsManagerProvider creates the store. Recognized options are
// region, profile, endpoint, access_key_id and secret_access_key.
func NewAWSSecretsManagerProvider(name string, cfg map[string]interface{}, opts ...SecretsManagerOption) (*AWSSecretsManagerProvider, error) {
	p := &AWSSecretsManagerProvider{name: name, region: stringOpt(cfg, "region", "us-east-1")}
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
	var clientOpts []func(*secretsmanager.Options)
	if endpoint := stringOpt(cfg, "endpoint", ""); endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	p.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	return p, nil
}

// Name returns the store name
func (p *AWSSecretsManagerProvider) Name() string {
	return p.name
}

// Resolve fetches one secret value.
func (p *AWSSecretsManagerProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	secretName, jsonPath := splitJSONPath(ref.Key)
	if ref.Field != "" {
		jsonPath = "." + strings.TrimPrefix(ref.Field, ".")
	}

	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretName)}
	if ref.Version != "" && ref.Version != "latest" {
		if isAWSVersionID(ref.Version) {
			input.VersionId = aws.String(ref.Version)
		} else {
			input.VersionStage = aws.String(ref.Version)
		}
	}

	out, err := p.client.GetSecretValue(ctx, input)
	if err != nil {
		return provider.SecretValue{}, p.wrap(err, secretName)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	default:
		return provider.SecretValue{}, fmt.Errorf("secret %q has no value", secretName)
	}

	if jsonPath != "" {
		value, err = extractJSONField(value, jsonPath)
		if err != nil {
			return provider.SecretValue{}, fmt.Errorf("secret %q: %w", secretName, err)
		}
	}

	sv := provider.SecretValue{
		Value:    value,
		Version:  aws.ToString(out.VersionId),
		Metadata: map[string]string{"secret_name": secretName, "region": p.region},
	}
	if out.CreatedDate != nil {
		sv.UpdatedAt = *out.CreatedDate
	}
	return sv, nil
}

// Describe returns secret metadata without the value.
func (p *AWSSecretsManagerProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	secretName, _ := splitJSONPath(ref.Key)
	out, err := p.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(secretName)})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return provider.Metadata{Exists: false}, nil
		}
		return provider.Metadata{}, p.wrap(err, secretName)
	}

	md := provider.Metadata{
		Exists: true,
		Type:   "aws-secret",
		Tags:   map[string]string{"secret_name": secretName, "region": p.region},
	}
	for id, stages := range out.VersionIdsToStages {
		for _, stage := range stages {
			if stage == "AWSCURRENT" {
				md.Version = id
			}
		}
	}
	if out.LastChangedDate != nil {
		md.UpdatedAt = *out.LastChangedDate
	}
	for _, tag := range out.Tags {
		md.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return md, nil
}

// Capabilities returns the store capabilities
func (p *AWSSecretsManagerProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsVersioning: true,
		SupportsMetadata:   true,
		SupportsBinary:     true,
		RequiresAuth:       true,
		AuthMethods:        []string{"iam", "environment", "shared_config"},
	}
}

// Validate lists a single secret to check credentials.
func (p *AWSSecretsManagerProvider) Validate(ctx context.Context) error {
	if _, err := p.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: aws.Int32(1)}); err != nil {
		return &provider.AuthError{Provider: p.name, Message: err.Error()}
	}
	return nil
}

func (p *AWSSecretsManagerProvider) wrap(err error, secretName string) error {
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return &provider.NotFoundError{Provider: p.name, Key: secretName}
	}
	if isAWSAuthError(err) {
		return &provider.AuthError{Provider: p.name, Message: err.Error()}
	}
	return fmt.Errorf("AWS Secrets Manager error: %w", err)
}

func loadAWSConfig(cfg map[string]interface{}, region string) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile := stringOpt(cfg, "profile", ""); profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}
	ak, sk := stringOpt(cfg, "access_key_id", ""), stringOpt(cfg, "secret_access_key", "")
	if ak != "" && sk != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

func isAWSAuthError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException",
		"InvalidSignatureException", "ExpiredTokenException":
		return true
	}
	return false
}

// AWS version IDs are UUIDs; anything else is a staging label.
func isAWSVersionID(version string) bool {
	return len(version) == 36 && strings.Count(version, "-") == 4
}

func splitJSONPath(key string) (string, string) {
	name, path, _ := strings.Cut(key, "#")
	return name, path
}

// extractJSONField walks a dotted path (".a.b") through a JSON document.
// Non-string leaves are re-encoded as JSON.
func extractJSONField(doc, path string) (string, error) {
	if !strings.HasPrefix(path, ".") {
		return "", fmt.Errorf("JSON path %q must start with '.'", path)
	}
	var current interface{}
	if err := json.Unmarshal([]byte(doc), &current); err != nil {
		return "", fmt.Errorf("value is not JSON: %w", err)
	}
	for _, part := range strings.Split(strings.TrimPrefix(path, "."), ".") {
		if part == "" {
			continue
		}
		obj, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("cannot select %q from a non-object", part)
		}
		if current, ok = obj[part]; !ok {
			return "", fmt.Errorf("field %q not found", part)
		}
	}
	switch v := current.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func stringOpt(cfg map[string]interface{}, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func boolOpt(cfg map[string]interface{}, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}
