package reasoning

// state names a step of the request lifecycle. It appears in logs only.
//
//	Received -> Validated -> CacheHit -> Done
//	Received -> Validated -> CacheMiss -> CredentialResolved -> Inferred -> CachePersisted -> Done
//
// Error is reachable from Received, CredentialResolved and Inferred. A failed
// write skips CachePersisted and still reaches Done.
type state string

const (
	stateValidated          state = "validated"
	stateCacheHit           state = "cache_hit"
	stateCacheMiss          state = "cache_miss"
	stateCredentialResolved state = "credential_resolved"
	stateInferred           state = "inferred"
	stateCachePersisted     state = "cache_persisted"
	stateDone               state = "done"
	stateError              state = "error"
)
