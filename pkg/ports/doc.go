/*
Package ports defines the driven ports (interfaces) of the wizard.

These interfaces decouple the traversal engine and session manager from the
hosted backend, the payment provider and the host platform.

# Key Interfaces

  - StateStore: persists session traversal State.
  - DistributedLocker: serialises session access across replicas.
  - TreeStore: keeps the admin tree override.
  - IdentityProvider: resolves the current caller.
  - ResultStore: upserts users and stores diagnostic outcomes.
  - PaymentGateway / PurchaseStore: premium unlock invoices and bookkeeping.
*/
package ports
