// Package artifact parses compiled contract artifacts: one JSON document per
// compiled unit, carrying arbitrary compiler metadata plus a per-network map
// of deployment records.
//
// Parsing is best effort. Any JSON object is accepted; when a target network
// is given, the artifact is decorated with the top-level "address" and
// "creationTxHash" fields copied from that network's deployment record.
package artifact
