// Package core defines the shared data model of agenthost: streamed events,
// role-based content parts and the JSON-like stream units exchanged with the
// hosting runtime. Types here are plain values with no behavior beyond
// construction helpers and accessors so every other package can depend on
// them without cycles.
package core
