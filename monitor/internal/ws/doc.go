// Package ws implements the WebSocket hub that streams session state.
//
// New(state, interval) creates a Hub. Hub.Run(ctx) broadcasts the current
// state every interval until ctx is cancelled, then closes all connections.
// Hub.Publish(event) pushes the state immediately, tagged with event; the
// monitor calls it when a measurement settles so clients see the result
// without waiting for the next tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "state" | "complete" | "failed" | "cancelled",
//	  "data":  { /* same schema as GET /api/v1/state */ }
//	}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/state.
package ws
