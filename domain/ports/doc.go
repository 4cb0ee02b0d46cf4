// Package ports defines the boundary between the bridge and the things it drives.
// The engine port is the narrow native boundary: channel creation, byte
// delivery in both directions, and the host lifecycle calls. Infrastructure
// adapters (wazero, loopback) implement these interfaces.
package ports
