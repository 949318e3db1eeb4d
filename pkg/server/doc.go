// Package server exposes a running renderer over HTTP.
//
// Routes:
//
//	GET /healthz   liveness of the scheduler loop and host tree counts
//	GET /tree      the host tree as JSON (?format=html for markup,
//	               ?hid=ID for the subtree rooted at one node)
//	GET /commits   retained commit records as JSON lines (?since=SEQ)
//	GET /metrics   Prometheus metrics, when Config.Gatherer is set
//	GET /ws        websocket; every commit is pushed as a JSON text frame
//
// The host tree is only touched on the scheduler loop goroutine. Handlers
// reach it through scheduler.Loop.Post, and commits reach websocket
// clients through a hub subscribed to the commit log.
//
//	srv := server.New(&server.Config{Addr: ":7070"}, loop, container, commits, logger)
//	go loop.Run(ctx)
//	err := srv.Run(ctx)
package server
