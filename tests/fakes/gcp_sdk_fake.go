package fakes

import (
	"context"
	"strings"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// FakeGCPSecretManagerClient stores secret versions by resource name,
// "projects/<p>/secrets/<s>/versions/<v>". "latest" resolves to the
// highest version added.
type FakeGCPSecretManagerClient struct {
	Versions  map[string][]byte
	Latest    map[string]string // secret resource -> latest version
	Labels    map[string]map[string]string
	Errors    map[string]error
	AccessErr error
}

// NewFakeGCPSecretManagerClient returns an empty client.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: map[string][]byte{},
		Latest:   map[string]string{},
		Labels:   map[string]map[string]string{},
		Errors:   map[string]error{},
	}
}

// AddSecretVersion stores data as version of project/secret and makes it
// the latest.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(project, secret, version string, data []byte) {
	res := "projects/" + project + "/secrets/" + secret
	f.Versions[res+"/versions/"+version] = data
	f.Latest[res] = version
}

func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	if err, ok := f.Errors[req.GetName()]; ok {
		return nil, err
	}
	name := req.GetName()
	if secret, ok := strings.CutSuffix(name, "/versions/latest"); ok {
		if v, ok := f.Latest[secret]; ok {
			name = secret + "/versions/" + v
		}
	}
	data, ok := f.Versions[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", req.GetName())
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    name,
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

func (f *FakeGCPSecretManagerClient) GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest) (*secretmanagerpb.Secret, error) {
	if err, ok := f.Errors[req.GetName()]; ok {
		return nil, err
	}
	if _, ok := f.Latest[req.GetName()]; !ok {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found.", req.GetName())
	}
	return &secretmanagerpb.Secret{
		Name:       req.GetName(),
		Labels:     f.Labels[req.GetName()],
		CreateTime: timestamppb.Now(),
	}, nil
}

func (f *FakeGCPSecretManagerClient) CheckAccess(ctx context.Context, project string) error {
	return f.AccessErr
}
