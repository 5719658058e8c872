// Package scenebridge is the boundary layer between a layout engine that
// produces display lists and a GPU retained-mode renderer that consumes them.
//
// # Overview
//
// A producer describes each frame of each content subtree (a pipeline) as a
// display list: an ordered command stream plus side-tables for glyphs,
// gradient stops, complex clips and filters. The list is built with
// [displaylist.Builder], encoded by package wire into a flat byte buffer and a
// fixed descriptor, sent through an [api.API], and decoded on the render side
// where package render composites it. Completed frames are reported back as
// (pipeline, epoch) pairs through package notify.
//
// # Packages
//
//   - scenebridge: identifiers, geometry, context tokens, logging
//   - displaylist: builder and immutable snapshots
//   - wire: binary codec and ownership-transfer buffers
//   - resource: image and font tables with deferred deletion
//   - external: lock/unlock/release bridge for producer-owned images
//   - blob: request/resolve cache for vector images
//   - api: producer-side message queue
//   - render: frame pipeline and reference software compositor
//   - notify: frame notifications and rendered epoch queues
//   - window: window registry tying the pieces together
//   - record: binary recording and replay of api traffic
//
// # Contexts
//
// Operations are split between a producer context, a render context and a
// coordination context. Each is represented by a token type created with
// [NewContexts]; passing a token of the wrong kind does not compile and
// passing another window's token panics with [ErrWrongContext].
//
// # Logging
//
// Nothing is logged by default. Call [SetLogger] to route diagnostics to a
// [log/slog] logger.
package scenebridge
