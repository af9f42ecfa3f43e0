// Package commands implements the parrhesia CLI: identity management,
// room creation and joining, safety-number display and TOFU
// verification.
package commands
