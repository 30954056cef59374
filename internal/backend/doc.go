// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

// Package backend resolves and calls the regional game services.
//
// A Registry caches, per region, the table of named service domains and
// the resource/client version pair, both loaded from remote configuration.
// A Dispatcher issues HTTP calls against a named service, resolving its base
// URL through the Registry and applying the default mobile-client headers.
//
// One Registry is meant to be shared by every handshake in a process. Loads
// for the same region are coalesced, and the tables are safe for concurrent
// use. Entries never expire.
package backend
