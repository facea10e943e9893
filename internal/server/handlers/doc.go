// Package handlers holds the HTTP handlers of the docsync server: webhook
// intake, health and run history lookups.
package handlers
