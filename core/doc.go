// Package core contains the top-up order domain: the order entity, its status
// state machine, the collaborator contracts (store, verifier, provisioning
// provider, payment gateway) and the lifecycle service that drives orders from
// checkout through payment to provisioning. Adapters depend on this package;
// core must not depend on provider-specific or transport-specific adapters.
package core
