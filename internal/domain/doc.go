// Package domain models GeoSphere Austria station climate data.
//
// # Data Source
//
// Readings come from the GeoSphere Austria Dataset API
// (https://dataset.api.hub.geosphere.at/v1), station historical endpoint.
// One request covers a date range and a comma-separated list of station IDs
// and parameters. The response is GeoJSON-flavoured: a shared "timestamps"
// array plus one feature per station, where each requested parameter carries
// a "data" array aligned index-by-index with the timestamps.
//
// # Parameters
//
// The pipeline requests three parameters:
//
//	TL  air temperature at 2 m, °C
//	RR  precipitation, mm
//	SO  sunshine duration, seconds
//
// Parameter keys are requested in upper case but the API has historically
// returned them in lower case; lookups accept either.
//
// Missing values are JSON null. A timestamp where all three parameters are
// null carries no information and is dropped during parsing; a day with no
// surviving readings therefore never produces a daily summary row.
//
// # Identity
//
// A reading is identified by (station, timestamp). Timestamps are normalized
// to UTC during parsing, which makes re-fetching an overlapping range safe:
// the store's ON CONFLICT DO NOTHING upsert discards exact duplicates.
//
// # Station metadata
//
// Station ID, name, federal state, and a valid-to date come from a local
// stations CSV (see the stations package). Stations whose valid-to date has
// passed are excluded from collection but historical rows remain queryable.
package domain
