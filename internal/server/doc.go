// Package server provides the HTTP boundary for the status store.
//
// This package is internal to statusfeed and handles all HTTP concerns:
//
//   - REST API: JSON endpoints under "/api" for setting, deleting and
//     querying statuses, the feed and keyword search
//   - Server-Sent Events: live mutation stream at "/api/sse"
//   - Dashboard serving: the embedded HTML page at "/"
//
// The caller identity for mutations comes from a request header and the
// logical timestamp from a configurable clock; authenticating that header is
// left to whatever sits in front of the server.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
