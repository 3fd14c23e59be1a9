package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/pkg/provider"
)

// GCPSecretManagerClientAPI is the part of the Secret Manager client the
// store calls.
type GCPSecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest) (*secretmanagerpb.Secret, error)
	// CheckAccess lists at most one secret of the project to check access.
	CheckAccess(ctx context.Context, project string) error
}

// GCPSecretManagerProvider reads Google Secret Manager secrets.
//
// Keys are short secret names, resolved in the configured project, or full
// "projects/<p>/secrets/<s>" names. "#.path" selects a JSON member.
type GCPSecretManagerProvider struct {
	name      string
	projectID string
	client    GCPSecretManagerClientAPI
}

// GCPOption configures the store at construction.
type GCPOption func(*GCPSecretManagerProvider)

// WithGCPClient replaces the SDK client.
func WithGCPClient(client GCPSecretManagerClientAPI) GCPOption {
	return func(p *GCPSecretManagerProvider) {
		p.client = client
	}
}

// NewGCPSecretManagerProvider creates the store. Recognized options are
// project_id, service_account_key_path and impersonate_service_account.
// project_id falls back to GOOGLE_CLOUD_PROJECT.
func NewGCPSecretManagerProvider(name string, cfg map[string]interface{}, opts ...GCPOption) (*GCPSecretManagerProvider, error) {
	p := &GCPSecretManagerProvider{
		name:      name,
		projectID: stringOpt(cfg, "project_id", os.Getenv("GOOGLE_CLOUD_PROJECT")),
	}
	if p.projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set project_id on the store or export GOOGLE_CLOUD_PROJECT",
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil {
		return p, nil
	}

	ctx := context.Background()
	var clientOpts []option.ClientOption
	if keyPath := stringOpt(cfg, "service_account_key_path", ""); keyPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(keyPath))
	}
	if target := stringOpt(cfg, "impersonate_service_account", ""); target != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: target,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	client, err := secretmanager.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}
	p.client = gcpClient{client}
	return p, nil
}

// Name returns the store name
func (p *GCPSecretManagerProvider) Name() string {
	return p.name
}

// Resolve accesses one secret version.
func (p *GCPSecretManagerProvider) Resolve(ctx context.Context, ref provider.Reference) (provider.SecretValue, error) {
	secret, jsonPath := splitJSONPath(ref.Key)
	if ref.Field != "" {
		jsonPath = "." + strings.TrimPrefix(ref.Field, ".")
	}
	version := ref.Version
	if version == "" {
		version = "latest"
	}
	resource := p.secretResource(secret) + "/versions/" + version

	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return provider.SecretValue{}, p.wrap(err, ref.Key)
	}
	if resp.GetPayload() == nil {
		return provider.SecretValue{}, fmt.Errorf("secret %q has no payload", secret)
	}

	value := string(resp.GetPayload().GetData())
	if jsonPath != "" {
		if value, err = extractJSONField(value, jsonPath); err != nil {
			return provider.SecretValue{}, fmt.Errorf("secret %q: %w", secret, err)
		}
	}

	return provider.SecretValue{
		Value:    value,
		Version:  resp.GetName(),
		Metadata: map[string]string{"project_id": p.projectID, "resource_name": resp.GetName()},
	}, nil
}

// Describe fetches the secret resource without a version.
func (p *GCPSecretManagerProvider) Describe(ctx context.Context, ref provider.Reference) (provider.Metadata, error) {
	secret, _ := splitJSONPath(ref.Key)
	resp, err := p.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: p.secretResource(secret)})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return provider.Metadata{Exists: false}, nil
		}
		return provider.Metadata{}, p.wrap(err, ref.Key)
	}

	md := provider.Metadata{
		Exists: true,
		Type:   "gcp-secret",
		Tags:   map[string]string{"project_id": p.projectID},
	}
	if resp.GetCreateTime() != nil {
		md.UpdatedAt = resp.GetCreateTime().AsTime()
	}
	for k, v := range resp.GetLabels() {
		md.Tags["label."+k] = v
	}
	return md, nil
}

// Capabilities returns the store capabilities
func (p *GCPSecretManagerProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsVersioning: true,
		SupportsMetadata:   true,
		SupportsBinary:     true,
		RequiresAuth:       true,
		AuthMethods:        []string{"service_account", "application_default", "impersonation"},
	}
}

// Validate lists one secret of the project.
func (p *GCPSecretManagerProvider) Validate(ctx context.Context) error {
	if err := p.client.CheckAccess(ctx, p.projectID); err != nil {
		return p.wrap(err, "projects/"+p.projectID)
	}
	return nil
}

func (p *GCPSecretManagerProvider) secretResource(secret string) string {
	if strings.HasPrefix(secret, "projects/") {
		return secret
	}
	return fmt.Sprintf("projects/%s/secrets/%s", p.projectID, secret)
}

func (p *GCPSecretManagerProvider) wrap(err error, key string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return &provider.NotFoundError{Provider: p.name, Key: key}
	case codes.PermissionDenied, codes.Unauthenticated:
		return &provider.AuthError{Provider: p.name, Message: status.Convert(err).Message()}
	}
	return fmt.Errorf("GCP Secret Manager error: %w", err)
}

// gcpClient adapts the generated client to GCPSecretManagerClientAPI.
type gcpClient struct {
	c *secretmanager.Client
}

func (g gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

func (g gcpClient) GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest) (*secretmanagerpb.Secret, error) {
	return g.c.GetSecret(ctx, req)
}

func (g gcpClient) CheckAccess(ctx context.Context, project string) error {
	it := g.c.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   "projects/" + project,
		PageSize: 1,
	})
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}
