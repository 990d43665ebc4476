// Package session resolves which user a browser session belongs to.
//
// The identity behind a credential is fetched once with GetMe and cached
// under the credential fingerprint until it is overwritten, invalidated or
// expires.
package session

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/models"
)

type State int

const (
	Unresolved State = iota
	Resolved
	Anonymous
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Anonymous:
		return "anonymous"
	default:
		return "unresolved"
	}
}

// resolveTimeout bounds a shared GetMe call once it no longer follows the
// context of the request that started it.
const resolveTimeout = 10 * time.Second

// Session is the outcome of resolving a credential. Err is the failure behind
// an Anonymous or Unresolved session; it is nil when there is no credential.
type Session struct {
	State State
	User  models.User
	Err   error
}

// Username returns the resolved username or "" for other states.
func (s Session) Username() string {
	if s.State != Resolved {
		return ""
	}
	return s.User.Username
}

// Resolver fetches the identity behind a token.
type Resolver interface {
	GetMe(ctx context.Context, token string) (models.User, error)
}

type Provider struct {
	cache    Cache
	resolver Resolver
	group    singleflight.Group
	logg     *logger.Logger
}

func NewProvider(cache Cache, resolver Resolver, logg *logger.Logger) *Provider {
	if logg == nil {
		logg = logger.New()
	}
	return &Provider{cache: cache, resolver: resolver, logg: logg}
}

// Key returns the cache key of a credential, or "" when none is stored.
func Key(creds credential.Store) string {
	token, ok := creds.Get()
	if !ok {
		return ""
	}
	return credential.Fingerprint(token)
}

// Resolve returns Resolved with the cached or freshly fetched user, or
// Anonymous when there is no credential or GetMe fails. Anonymous results are
// not cached.
//
// Concurrent resolutions of one credential share a GetMe call that is
// detached from any single request. A caller whose context ends first gets
// Unresolved and the shared call keeps running for the others.
func (p *Provider) Resolve(ctx context.Context, creds credential.Store) Session {
	token, ok := creds.Get()
	if !ok {
		return Session{State: Anonymous}
	}
	key := credential.Fingerprint(token)

	user, hit, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logg.Error("session", "Session cache read failed", err)
	}
	if hit {
		return Session{State: Resolved, User: user}
	}

	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(shared, resolveTimeout)
		defer cancel()
		user, err := p.resolver.GetMe(ctx, token)
		if err != nil {
			return nil, err
		}
		if err := p.cache.Put(ctx, key, user); err != nil {
			p.logg.Error("session", "Session cache write failed", err)
		}
		return user, nil
	})

	select {
	case <-ctx.Done():
		return Session{State: Unresolved, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			p.logg.Debug("session", "Session resolved as anonymous: "+res.Err.Error())
			return Session{State: Anonymous, Err: res.Err}
		}
		return Session{State: Resolved, User: res.Val.(models.User)}
	}
}

// Set overwrites the identity cached for the current credential.
func (p *Provider) Set(ctx context.Context, creds credential.Store, user models.User) {
	key := Key(creds)
	if key == "" {
		return
	}
	if err := p.cache.Put(ctx, key, user); err != nil {
		p.logg.Error("session", "Session cache write failed", err)
	}
}

// Invalidate drops the identity cached for the current credential.
func (p *Provider) Invalidate(ctx context.Context, creds credential.Store) {
	p.invalidateKey(ctx, Key(creds))
}

// InvalidateToken drops the identity cached for token. It is used after the
// credential holding token has already been deleted.
func (p *Provider) InvalidateToken(ctx context.Context, token string) {
	if token == "" {
		return
	}
	p.invalidateKey(ctx, credential.Fingerprint(token))
}

func (p *Provider) invalidateKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := p.cache.Delete(ctx, key); err != nil {
		p.logg.Error("session", "Session cache delete failed", err)
	}
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx, Unresolved when absent.
func FromContext(ctx context.Context) Session {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok {
		return Session{State: Unresolved}
	}
	return s
}
