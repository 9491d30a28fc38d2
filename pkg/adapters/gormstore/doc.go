// Package gormstore keeps users, diagnostic outcomes, purchases and the tree
// override in a SQL database through gorm. The default driver is the pure-Go
// SQLite driver, so no cgo toolchain is needed.
package gormstore
