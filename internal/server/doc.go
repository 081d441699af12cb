// Package server implements the core of the IPChat relay: the broadcast
// coordinator, session registry, and history buffer, plus the WebSocket
// transport and HTTP surface around them.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, the coordinator, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows.
package server
