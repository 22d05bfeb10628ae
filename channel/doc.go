// Package channel defines the backend channel contract shared by every
// connection kind the bridge can dispatch into.
//
// A Channel is an adapter to one specific way of talking to the Godot engine:
//
//   - Headless: one engine process spawned per call (channel/headless)
//   - Editor: a persistent command/event socket to the editor addon (channel/editor)
//   - Script: the GDScript language server (channel/lsp)
//   - Debug: the debug adapter (channel/dap)
//
// The router only ever depends on the Channel contract; the kinds form a
// closed set, not an open class hierarchy.
//
// # Connection state
//
// Persistent channels carry a State owned by the supervisor. Channels report
// failures upward through a disconnect callback; they never transition their
// own state, which keeps exactly one component responsible for reconnect
// decisions.
//
// # Request correlation
//
// Table pairs concurrent in-flight requests on a single persistent connection
// with their responses by correlation id. Each entry resolves exactly once:
// response, failure, or caller abandonment. A late response for an abandoned
// id is discarded, never misrouted.
//
// # Framing
//
// Two wire framings are provided: newline-delimited JSON for the editor
// addon protocol, and Content-Length header framing for the language-server
// and debug-adapter base protocols.
package channel
