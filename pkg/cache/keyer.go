package cache

// Keyer derives cache keys from content hashes and options.
type Keyer interface {
	// LayoutKey returns the key of a layout computed for the graph with the
	// given content hash under the options with the given hash.
	LayoutKey(graphHash, optionsHash string) string

	// RenderKey returns the key of an artifact rendered from a layout.
	RenderKey(layoutHash string, opts RenderKeyOpts) string
}

// RenderKeyOpts holds the render options that change the artifact bytes.
type RenderKeyOpts struct {
	Format string  `json:"format"`
	Scale  float64 `json:"scale"`
	Labels bool    `json:"labels"`
}

// DefaultKeyer produces keys of the form kind:sha256(parts).
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey hashes the graph and options hashes together.
func (DefaultKeyer) LayoutKey(graphHash, optionsHash string) string {
	return hashKey("layout", graphHash, optionsHash)
}

// RenderKey hashes the layout hash with the render options.
func (DefaultKeyer) RenderKey(layoutHash string, opts RenderKeyOpts) string {
	return hashKey("render", layoutHash, opts)
}

var _ Keyer = DefaultKeyer{}
