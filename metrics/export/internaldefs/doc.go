// Package internaldefs holds the metric names shared by the exporters.
//
// Counter and histogram definitions live here so that the Prometheus and OTel
// exporters publish identical names and bucket boundaries.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
