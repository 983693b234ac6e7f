// Package domain models magnetometer-derived geoelectric field records and the
// rules that decide which earth-conductivity models are applied to them.
//
// # Records
//
// A record bundle holds named time-series records. The source record (key "B"
// by convention) carries the horizontal magnetic field components Bx (north)
// and By (east) in nT. The derived record (key "E") carries one pair of
// columns per applied model:
//
//	<model_id>_Ex, <model_id>_Ey   (mV/km)
//
// Both records share the same strictly increasing time index. Re-deriving a
// model overwrites its two columns in place; other columns are untouched
// unless the derivation runs in replace mode.
//
// # Model identifiers
//
// Two namespaces exist:
//
//	Region models:  underscore-normalized physiographic region names,
//	                e.g. "Rocky-Mountains" -> "Rocky_Mountains".
//	Spatial models: EMTF product identifiers starting with "USArray",
//	                e.g. "USArray.MTA15.2011".
//
// The namespace is resolved once into a [ModelRef] so evaluator dispatch is a
// switch over [ModelKind] rather than repeated prefix checks.
//
// # Selection
//
// [Selector.Select] starts from include minus exclude, adds the region model
// for the station location when requested, then adds every spatial model
// within a great-circle distance whose quality rating meets the threshold.
// Auto-selected models bypass the exclude list unless
// [SelectRequest.ExcludeAutoSelected] is set.
//
// # Failure policy
//
// [Derive] is fail-fast: one evaluator error aborts the whole derivation and
// nothing is persisted. Density sampling for slant integration (package
// ionosphere) is tolerant instead and clamps invalid samples.
package domain
