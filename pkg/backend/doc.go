// Copyright 2024-2026 Aiku AI

// Package backend adapts the Mattermost real-time event stream and REST API
// to a platform-neutral bot abstraction: messages, people, rooms and
// presence.
//
// # Core Types
//
// [Backend] owns the websocket lifecycle. It classifies incoming events,
// normalizes them into [Message], [Presence] and room membership values,
// and delivers them to a [Sink] strictly in arrival order. A single
// malformed or unrecognized event is logged and dropped; the stream never
// terminates because of one bad event.
//
// [Resolver] turns textual references (@user, ~channel, raw IDs) into typed
// [Person] and [Room] identities. Username and direct-channel lookups are
// memoized in a bounded LRU (see the idcache sub-package) since both are
// stable for the process lifetime.
//
// [Room] resolves its channel ID lazily and exposes the channel operations:
// create, join, leave, destroy, invite, topic, purpose and occupants.
//
// # Team Isolation
//
// The backend binds to a single team at bootstrap. Events carrying a
// different team ID are discarded before any callback fires.
//
// # Sub-packages
//
//   - chunk splits outgoing bodies to the platform size limit while keeping
//     fenced code blocks balanced in every part.
//   - idcache is the bounded identifier-resolution cache.
package backend
