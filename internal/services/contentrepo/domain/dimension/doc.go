// Package dimension models the configured dimension space a content graph varies
// across.
//
// A Point assigns one value per configured dimension (for example language and
// region). Each dimension is a fallback tree of values; a point falls back to
// another when every coordinate falls back to the other's coordinate. The
// VariationGraph derives the generalization, specialization and peer relation
// from that configuration and answers coverage questions for node variants.
//
// Points, sets and origins are immutable values. The graph is built once from
// configuration at startup and is read-only afterwards, so it is safe for
// concurrent use.
package dimension
