// Package catalog owns the active diagnostic tree.
//
// The catalog starts with the built-in default tree and lets an admin replace
// it with an override. Every swap bumps the revision, which sessions compare
// against their own binding to detect that their traversal state is stale.
// An optional ports.TreeStore keeps the override across restarts.
package catalog
