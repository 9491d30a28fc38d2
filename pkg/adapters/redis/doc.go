// Package redis provides Redis-backed session state, distributed session
// locks and the tree override store, for deployments running more than one
// replica against the same data.
package redis
