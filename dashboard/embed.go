// Package dashboard provides the embedded web UI for StatusFeed.
//
// The page is compiled into the binary with Go's embed directive and served
// by the server package at "/". It posts and deletes statuses through the
// JSON API and follows the feed over Server-Sent Events.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
// "{{.Title}}" and "{{.IdentityHeader}}" in the page are substituted at
// serve time.
//
//go:embed assets/*
var Assets embed.FS
