// Package feature implements the capability layer of the control plane: a
// catalog of features exposed by provider plugins, a router that carries
// control operations and inbound feature messages to the providers, and
// the per-target bookkeeping that ties features to remote sessions.
package feature
