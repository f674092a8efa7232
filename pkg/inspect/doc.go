// Package inspect provides a live HTTP inspection surface for a fluxion
// graph: a JSON snapshot of the registered nodes, the Prometheus metrics
// endpoint, and a WebSocket stream of node changes.
//
// Routes:
//
//	GET /graph    JSON array of nodes (id, name, kind, level, result, children)
//	GET /metrics  Prometheus exposition
//	GET /watch    WebSocket stream of node-change events
//
// Wire the server to a scheduler through its hooks:
//
//	reg := fluxion.NewRegistry()
//	srv := inspect.New(reg)
//	sched := fluxion.NewScheduler(fluxion.WithHooks(srv.Hooks()))
//	go srv.ListenAndServe(":7878")
package inspect
