/*
Package armlab is the backend of the Armtemiy Lab Mini-App: a guided
diagnostic wizard for arm-wrestling injuries with a paid premium branch.

# Concept

A diagnostic tree is a directed graph of question and result nodes. A
session walks it one answer at a time. Each state transition is a pure
function of the previous state (see internal/runtime). The session manager
(pkg/session) serializes access per session, persists each state and saves
the outcome the first time a session reaches a result. A save finishes in
the background and is dropped if the session has moved on in the meantime.

# Layout

  - pkg/domain: nodes, trees, traversal state, views and sentinel errors.
  - pkg/schema: tree decoding (JSON, YAML) and integrity checks.
  - pkg/catalog: the active tree and its admin override.
  - pkg/session: session orchestration and background result persistence.
  - pkg/payment: the Telegram Stars unlock flow.
  - pkg/adapters: memory, redis, sqlite (gorm), telegram and http adapters.
  - cmd/armlab: the server and tooling CLI.

# Usage

	armlab serve --config armlab.yaml
	armlab validate tree.yaml
	armlab play
*/
package armlab
