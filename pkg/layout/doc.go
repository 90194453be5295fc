// Package layout computes force-directed drawings of undirected graphs with
// the multilevel fast multipole method.
//
// # Pipeline
//
// [Run] executes the whole algorithm on a [multigraph.Graph]:
//
//  1. Edge lengths are scaled by the unit edge length and, in
//     bounding-circle mode, extended by the radii of both endpoints.
//  2. Self-loops are dropped and parallel edges merged (see
//     [transform.Reduce]).
//  3. The graph is split into connected components, which are laid out
//     concurrently. Each component is coarsened into a hierarchy of solar
//     systems, the coarsest level is placed from scratch, and every finer
//     level starts from the interpolated solution of the level above it.
//     The finest level is postprocessed.
//  4. The component drawings are packed side by side according to the page
//     ratio, and positions are optionally truncated to a bounded integer
//     grid.
//
// # Configuration
//
// [Options] mirrors the full configuration surface of the algorithm. Start
// from [DefaultOptions]; [Options.Normalize] clamps invalid values and
// [Options.ApplyHighLevel] derives the low-level settings from a page format
// and a quality tier. Options carries JSON and TOML tags so it can be read
// from configuration files and request bodies.
//
// # Determinism
//
// Component i draws all of its random choices from a generator seeded with
// Seed+i, so a fixed seed reproduces the same layout regardless of how many
// components run in parallel. The random_time placement is seeded from the
// clock and is not reproducible.
package layout
