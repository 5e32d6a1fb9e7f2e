// Package server exposes the dubbing session over HTTP. The Session
// aggregate owns the audio engine lifecycle and wires the transport,
// scheduler, playback and export controllers together; the HTTPServer
// maps them to a JSON API with a WebSocket monitor stream and
// Prometheus metrics.
package server
