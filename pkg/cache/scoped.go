package cache

// ScopedKeyer wraps a Keyer with a prefix. The CLI and server scope keys by
// build version so that entries written by a different engine version are
// never read back.
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "v1.2.0:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LayoutKey generates a prefixed layout key.
func (k *ScopedKeyer) LayoutKey(graphHash, optionsHash string) string {
	return k.prefix + k.inner.LayoutKey(graphHash, optionsHash)
}

// RenderKey generates a prefixed artifact key.
func (k *ScopedKeyer) RenderKey(layoutHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(layoutHash, opts)
}
