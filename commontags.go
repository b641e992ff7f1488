package commontags

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/garlicnation/commontags/promise"
	"github.com/garlicnation/commontags/tagset"
)

// Profile is a user record resolved from a handle.
type Profile struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"avatarUrl"`
}

// Token is the credential shared by every tagging call of one search.
type Token string

// ProfileFetcher resolves a handle to its profile.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, handle string) (Profile, error)
}

// Authenticator obtains a token for an ImageTagger.
type Authenticator interface {
	Authenticate(ctx context.Context) (Token, error)
}

// ImageTagger returns the tags of the image at url.
type ImageTagger interface {
	TagImage(ctx context.Context, url string, token Token) ([]string, error)
}

// IntersectFunc reduces per-image tag sets to the tags common to all of them.
type IntersectFunc func(sets [][]string) []string

// Searcher finds the tags shared by the avatars of a group of users.
type Searcher struct {
	profiles  ProfileFetcher
	auth      Authenticator
	tagger    ImageTagger
	intersect IntersectFunc
	log       *zap.Logger
	tracer    trace.Tracer
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger used for stage events. The default discards them.
func WithLogger(log *zap.Logger) Option {
	return func(s *Searcher) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTracer sets the tracer used for the per-search span.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Searcher) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithIntersect replaces tagset.Intersect as the final aggregation.
func WithIntersect(f IntersectFunc) Option {
	return func(s *Searcher) {
		if f != nil {
			s.intersect = f
		}
	}
}

// New returns a Searcher over the given collaborators.
func New(profiles ProfileFetcher, auth Authenticator, tagger ImageTagger, opts ...Option) *Searcher {
	s := &Searcher{
		profiles:  profiles,
		auth:      auth,
		tagger:    tagger,
		intersect: tagset.Intersect,
		log:       zap.NewNop(),
		tracer:    otel.Tracer("github.com/garlicnation/commontags"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// avatars is what the first barrier hands to the tagging stage.
type avatars struct {
	urls  []string
	token Token
}

// SearchCommonTags resolves to the tags common to the avatars of every
// handle. It makes one profile lookup per handle and one authentication
// call, then one tagging call per avatar, 2N+1 calls in total.
//
// The first collaborator failure rejects the result with that same
// error. Calls still in flight at that point see their context
// cancelled and their results are dropped. An empty handle list resolves
// to an empty result without calling anything.
func (s *Searcher) SearchCommonTags(ctx context.Context, handles []string) *promise.Promise[[]string] {
	if len(handles) == 0 {
		return promise.Resolve([]string{})
	}

	ctx, span := s.tracer.Start(ctx, "SearchCommonTags",
		trace.WithAttributes(attribute.Int("handles.count", len(handles))))
	ctx, cancel := context.WithCancel(ctx)
	log := s.log.With(zap.Strings("handles", handles))

	// Fan out profile lookups and authentication.
	lookups := make([]*promise.Promise[Profile], len(handles))
	for i, handle := range handles {
		handle := handle
		lookups[i] = promise.New(func() (Profile, error) {
			return s.profiles.GetProfile(ctx, handle)
		})
	}
	token := promise.New(func() (Token, error) {
		return s.auth.Authenticate(ctx)
	})

	// Barrier: every profile and the token.
	joined := promise.Join(promise.All(lookups...), token)

	urls := promise.Then(joined, func(j promise.Pair[[]Profile, Token]) (avatars, error) {
		out := avatars{urls: make([]string, len(j.First)), token: j.Second}
		for i, p := range j.First {
			out.urls[i] = p.AvatarURL
		}
		log.Debug("profiles resolved", zap.Strings("avatars", out.urls))
		return out, nil
	})

	// Fan out tagging with the shared token, then barrier again.
	tagSets := promise.Chain(urls, func(a avatars) *promise.Promise[[][]string] {
		calls := make([]*promise.Promise[[]string], len(a.urls))
		for i, url := range a.urls {
			url := url
			calls[i] = promise.New(func() ([]string, error) {
				return s.tagger.TagImage(ctx, url, a.token)
			})
		}
		return promise.All(calls...)
	})

	result := promise.Then(tagSets, func(sets [][]string) ([]string, error) {
		return s.intersect(sets), nil
	})

	// Settle only once siblings are cancelled and the outcome is recorded.
	return promise.New(func() ([]string, error) {
		defer span.End()
		tags, err := result.Wait()
		cancel()
		if err != nil {
			log.Warn("common tag search failed", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		log.Debug("common tag search finished", zap.Strings("tags", tags))
		span.SetAttributes(attribute.Int("tags.count", len(tags)))
		return tags, nil
	})
}
