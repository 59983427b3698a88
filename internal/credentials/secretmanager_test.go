package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	secrets  map[string][][]byte
	creates  int
	createFn func(name string) error
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{secrets: make(map[string][][]byte)}
}

func (f *fakeSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	name := strings.TrimSuffix(req.GetName(), "/versions/latest")
	versions := f.secrets[name]
	if len(versions) == 0 {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: versions[len(versions)-1]},
	}, nil
}

func (f *fakeSecretClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	name := req.GetParent() + "/secrets/" + req.GetSecretId()
	if f.createFn != nil {
		if err := f.createFn(name); err != nil {
			return nil, err
		}
	}
	if _, ok := f.secrets[name]; ok {
		return nil, status.Error(codes.AlreadyExists, "exists")
	}
	if req.GetSecret().GetReplication().GetAutomatic() == nil {
		return nil, status.Error(codes.InvalidArgument, "replication required")
	}
	f.creates++
	f.secrets[name] = nil
	return &secretmanagerpb.Secret{Name: name}, nil
}

func (f *fakeSecretClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	if _, ok := f.secrets[req.GetParent()]; !ok {
		return nil, status.Error(codes.NotFound, "no secret")
	}
	f.secrets[req.GetParent()] = append(f.secrets[req.GetParent()], req.GetPayload().GetData())
	return &secretmanagerpb.SecretVersion{Name: req.GetParent() + "/versions/1"}, nil
}

func (f *fakeSecretClient) DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error {
	if _, ok := f.secrets[req.GetName()]; !ok {
		return status.Error(codes.NotFound, "no secret")
	}
	delete(f.secrets, req.GetName())
	return nil
}

func (f *fakeSecretClient) Close() error { return nil }

func TestSecretManagerStoreRefFor(t *testing.T) {
	store := newSecretManagerStoreWithClient(newFakeSecretClient(), "my-project")

	got := store.RefFor("UCabc")
	want := "projects/my-project/secrets/tubebatch-token-UCabc"
	if got != want {
		t.Errorf("RefFor() = %q, want %q", got, want)
	}
}

func TestSecretManagerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	store := newSecretManagerStoreWithClient(client, "proj")
	ref := store.RefFor("UC1")

	if _, err := store.Load(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() before Save error = %v, want ErrNotFound", err)
	}

	if err := store.Save(ctx, ref, testToken("first")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, ref, testToken("second")); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if client.creates != 1 {
		t.Errorf("CreateSecret called %d times, want 1", client.creates)
	}
	if n := len(client.secrets[ref]); n != 2 {
		t.Errorf("secret has %d versions, want 2", n)
	}

	tok, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tok.AccessToken != "second" {
		t.Errorf("AccessToken = %q, want latest version", tok.AccessToken)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSecretManagerStoreSaveErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.createFn = func(string) error { return status.Error(codes.PermissionDenied, "denied") }
	store := newSecretManagerStoreWithClient(client, "proj")

	err := store.Save(ctx, store.RefFor("UC1"), testToken("x"))
	if err == nil || !strings.Contains(err.Error(), "failed to create secret") {
		t.Errorf("Save() error = %v, want create failure", err)
	}

	if err := store.Save(ctx, "not-a-secret-name", testToken("x")); err == nil {
		t.Error("Save() with malformed ref expected error")
	}
}

func TestSplitSecretName(t *testing.T) {
	tests := []struct {
		ref        string
		wantParent string
		wantID     string
		wantErr    bool
	}{
		{ref: "projects/p/secrets/s1", wantParent: "projects/p", wantID: "s1"},
		{ref: "projects/p/secrets/", wantErr: true},
		{ref: "/secrets/s1", wantErr: true},
		{ref: "token_UC1.json", wantErr: true},
	}

	for _, tt := range tests {
		parent, id, err := splitSecretName(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitSecretName(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if parent != tt.wantParent || id != tt.wantID {
			t.Errorf("splitSecretName(%q) = %q, %q", tt.ref, parent, id)
		}
	}
}
