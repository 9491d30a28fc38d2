/*
Package session drives diagnostic sessions on top of the traversal engine.

The Manager owns the traversal state of every session in a ports.StateStore
and serialises operations on one session with a reference-counted lock
(optionally backed by a ports.DistributedLocker when several replicas share
the store). Every operation loads the state, resets it when the active tree
revision changed, applies the engine transition, stores the result and
renders a view for the caller.

When a transition enters a result view for the first time the Manager
launches a background save through the ports.ResultStore. The save outcome is
written back only if the session generation is unchanged, so a Restart or a
tree swap in the meantime silently discards it. Wait blocks until in-flight
saves finish.
*/
package session
