package memory

import "slices"

// Options carries the optional arguments of Store, Search and List.
// Each operation reads only the fields it understands.
type Options struct {
	Tags     []string
	Metadata map[string]any
	Limit    int
}

// Option configures a single operation.
type Option func(*Options)

// WithTags sets the namespace tags. On Store all tags are persisted; on
// Search and List only the first one filters.
func WithTags(tags ...string) Option {
	return func(o *Options) {
		o.Tags = slices.Clone(tags)
	}
}

// WithMetadata sets caller metadata for Store.
func WithMetadata(md map[string]any) Option {
	return func(o *Options) {
		o.Metadata = md
	}
}

// WithLimit bounds the number of results returned by Search or List.
func WithLimit(n int) Option {
	return func(o *Options) {
		o.Limit = n
	}
}

// Apply resolves opts on top of defaultLimit.
func Apply(defaultLimit int, opts ...Option) Options {
	o := Options{Limit: defaultLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
