package credentials

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var ErrNotFound = errors.New("credential not found")

// Store persists OAuth tokens for linked accounts. A ref is an opaque string
// produced by RefFor; callers keep it and never interpret it.
type Store interface {
	Load(ctx context.Context, ref string) (*oauth2.Token, error)
	Save(ctx context.Context, ref string, token *oauth2.Token) error
	Delete(ctx context.Context, ref string) error
	RefFor(accountID string) string
}

// PersistingTokenSource wraps src and writes every token it hands out that
// differs from the last saved one back to store under ref.
func PersistingTokenSource(ctx context.Context, store Store, ref string, current *oauth2.Token, src oauth2.TokenSource) oauth2.TokenSource {
	return &persistingSource{
		ctx:   ctx,
		store: store,
		ref:   ref,
		last:  current,
		src:   src,
	}
}

type persistingSource struct {
	ctx   context.Context
	store Store
	ref   string
	last  *oauth2.Token
	src   oauth2.TokenSource
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	if p.last == nil || tok.AccessToken != p.last.AccessToken {
		if err := p.store.Save(p.ctx, p.ref, tok); err != nil {
			return nil, err
		}
		p.last = tok
	}
	return tok, nil
}
