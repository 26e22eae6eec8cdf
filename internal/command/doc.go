// Package command defines the canonical command envelope and contract used
// across the write path.
//
// Commands express intent against one order. They are the stable boundary
// before the domain decider so that business rules are evaluated only against
// normalized inputs: a known type, valid payload JSON, and a version pin that
// matches the command's insert or update nature.
package command
