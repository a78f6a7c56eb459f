// Package model defines the data shared between the fetcher, the archiver,
// the archive database and the report writers.
//
//   - Response: a fetched body with the HTTP metadata needed to decode it.
//   - Capture: the summary of one archive operation.
//
// Both serialize to JSON for reports and are stored by the database package.
package model
