package llm

import "context"

// Message is one turn of a conversation in the neutral format every
// provider adapter consumes. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Options carries per-call tuning. A zero value means "use the provider
// default" for that field.
type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

// Option mutates Options. Providers apply them in order.
type Option func(*Options)

// Apply folds opts into a base Options value.
func (o *Options) Apply(opts []Option) {
	for _, opt := range opts {
		opt(o)
	}
}

func WithTemperature(temp float64) Option {
	return func(o *Options) { o.Temperature = temp }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithModel overrides the provider's configured model for this call.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// LLMProvider is the contract reply generation depends on. Adapters
// translate the neutral history into their backend's wire format.
type LLMProvider interface {
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate is the single-prompt convenience form of Chat.
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
