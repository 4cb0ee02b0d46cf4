// Package entities provides the core domain types shared by the bridge:
// surfaces, wire messages carried on the built-in channels, configuration
// and structured error details.
// Application-specific payloads belong in the embedding application.
package entities
