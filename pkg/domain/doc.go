/*
Package domain contains the core models of the diagnostic wizard.

It is kept free of I/O and persistence concerns.

# Key Entities

  - Tree: the immutable decision graph (start id + node map).
  - Node: a tagged union of Question (branching) and Result (terminal).
  - State: the traversal state of one session (position, history, answers, save status).
  - PersistRequest: what the engine asks the host to store when a result is reached.
  - View: the caller-specific render of the current node, including premium gating.
*/
package domain
