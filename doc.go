// Package skynet defines the interfaces and data types shared by the
// components of the Skynet client. The goal is to let callers treat the
// registry of a Skynet portal as a strongly consistent, versioned key-value
// store.
//
// # Registry entry
//
// The central mutable abstraction is a RegistryEntry: a small payload stored
// under an owner public key and a data key, carrying a revision number that
// strictly increases with every write. Entries are signed with the owner's
// Ed25519 key and verified on every read.
//
// # Content
//
// Immutable content is identified by a skylink. SkyDB stores skylinks in
// registry entries to point a mutable key at immutable JSON documents.
//
// # Capabilities
//
// Registry, Uploader and Downloader are the capabilities the SkyDB engine is
// written against. Concrete clients are composed by choosing which
// implementations to inject, see the client package.
package skynet
