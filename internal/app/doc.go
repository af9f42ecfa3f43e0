// Package app holds runtime configuration and the dependency wiring for
// the CLI: stores, relay clients and logging, composed behind a single
// Wire value.
package app
