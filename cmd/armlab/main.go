// Command armlab serves the diagnostic wizard API and offers tooling around
// diagnostic trees.
package main

func main() {
	Execute()
}
