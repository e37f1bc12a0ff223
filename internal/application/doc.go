// Package application provides application initialization and dependency wiring.
// It builds the resolver from runtime configuration, performs the initial load,
// and creates the HTTP router and server, keeping the main package focused on
// CLI parsing and orchestration.
package application
