package memprof

import "context"

type samplerKey struct{}

// WithSampler returns a context carrying s.
func WithSampler(ctx context.Context, s *Sampler) context.Context {
	return context.WithValue(ctx, samplerKey{}, s)
}

// FromContext returns the sampler stored by WithSampler, or nil.
func FromContext(ctx context.Context) *Sampler {
	s, _ := ctx.Value(samplerKey{}).(*Sampler)
	return s
}

// Profile runs fn inside a measurement scope. Sampling starts before fn and is stopped
// on every exit path, panics included. The report is returned together with fn's error.
func Profile(ctx context.Context, name string, cfg Config, fn func(ctx context.Context) error) (rep *Report, err error) {
	s := NewSampler(name, cfg)
	s.Start(ctx)
	defer func() { rep = s.Stop() }()
	return nil, fn(WithSampler(ctx, s))
}
