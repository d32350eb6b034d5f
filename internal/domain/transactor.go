package domain

// Transactor begins the single serializable transaction a multi-entity
// state change requires (e.g. approving a Block also flips the Unit's
// availability). Callers that only touch one entity use a repository's
// bare ExecuteTransition; callers touching more than one Begin() a Tx
// and pass it to each entity's ExecuteTransitionTx so every mutation,
// the history write, and the notification staging share one
// commit/rollback.
type Transactor interface {
	Begin() (Tx, error)
}

// Tx is an opaque handle to an in-flight transaction. Concrete
// implementations (internal/repository/postgres) hold a *pgx.Tx; callers
// never inspect it, only pass it through to repository *Tx methods.
type Tx interface {
	Commit() error
	Rollback() error
}
