// Package hotspot turns accident records into labeled spatial clusters.
//
// The flow for one detection run is:
//
//	records -> AreaResolver -> Normalize -> ClusterDensity | ClusterCentroid
//	        -> Evaluate (silhouette) + Aggregate / CrossTabulate
//
// Everything here is synchronous and stateless. Configuration (named areas,
// Params) is passed in as values and never mutated, so concurrent runs with
// different settings do not interfere.
//
// Failure policy: configuration mistakes return *domain.InvalidParameterError.
// Data problems (zero spread, NaN input, too few distinct points for k) never
// fail a run; Engine.Detect falls back to a single cluster and sets
// ClusterLabeling.Fallback.
package hotspot
