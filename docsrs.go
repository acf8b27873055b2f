// Package docsrs looks up the top-level documentation items of a package
// on a rustdoc documentation site (docs.rs by default) and serves them to
// agents over the Model Context Protocol.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., http/, goquery/, sqlite/).
package docsrs
