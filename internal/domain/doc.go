// Package domain contains the core concepts of the printer emulator: label
// canvases, printer resolutions and the error taxonomy of the print pipeline.
// Keep this package free of transport (HTTP) and infrastructure (Chrome,
// Redis, filesystem) concerns.
package domain
