package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const secretIDPrefix = "tubebatch-token-"

var _ Store = (*SecretManagerStore)(nil)

type secretClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error
	Close() error
}

// SecretManagerStore keeps one secret per account in a Google Cloud project.
// Refs are full secret resource names.
type SecretManagerStore struct {
	client  secretClient
	project string
}

func NewSecretManagerStore(ctx context.Context, project string) (*SecretManagerStore, error) {
	if project == "" {
		return nil, fmt.Errorf("secret manager project is required")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &SecretManagerStore{client: client, project: project}, nil
}

func newSecretManagerStoreWithClient(client secretClient, project string) *SecretManagerStore {
	return &SecretManagerStore{client: client, project: project}
}

func (s *SecretManagerStore) Close() error {
	return s.client.Close()
}

func (s *SecretManagerStore) RefFor(accountID string) string {
	return fmt.Sprintf("projects/%s/secrets/%s%s", s.project, secretIDPrefix, sanitizeID(accountID))
}

func (s *SecretManagerStore) Load(ctx context.Context, ref string) (*oauth2.Token, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: ref + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to access secret: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(resp.GetPayload().GetData(), &token); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return &token, nil
}

func (s *SecretManagerStore) Save(ctx context.Context, ref string, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("nil token")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	parent, secretID, err := splitSecretName(ref)
	if err != nil {
		return err
	}

	_, err = s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   parent,
		SecretId: secretID,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("failed to create secret: %w", err)
	}

	if _, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  ref,
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}); err != nil {
		return fmt.Errorf("failed to add secret version: %w", err)
	}
	return nil
}

func (s *SecretManagerStore) Delete(ctx context.Context, ref string) error {
	err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: ref})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

func splitSecretName(ref string) (parent, secretID string, err error) {
	idx := strings.LastIndex(ref, "/secrets/")
	if idx <= 0 || idx+len("/secrets/") >= len(ref) {
		return "", "", fmt.Errorf("invalid secret name %q", ref)
	}
	return ref[:idx], ref[idx+len("/secrets/"):], nil
}
