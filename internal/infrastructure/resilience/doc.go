/*
Package resilience provides the circuit breaker in front of the snapshot
store and inside the API client.

A breaker counts outcomes per generation. In the closed state, failures
that satisfy Trip open it; after Cooldown it lets Probes trial calls
through and closes again once they all succeed. Any failure while
half-open reopens it. Calls cancelled by their caller are not counted.

	breaker := resilience.New("snapshot-store", resilience.Settings{
		Cooldown: 30 * time.Second,
		Trip:     resilience.FailureThreshold(5),
		IsSuccessful: func(err error) bool {
			return err == nil || snapshot.IsNotFound(err)
		},
	})

	rec, err := resilience.Call(breaker, func() (*snapshot.Record, error) {
		return store.Get(ctx, id)
	})
	if resilience.IsRejected(err) {
		// fail fast, the store is known to be down
	}
*/
package resilience
