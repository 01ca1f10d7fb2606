// Package querycache orchestrates client-side data fetches: it caches results
// by request key, collapses concurrent fetches of the same key into one,
// retries transient failures, and runs a one-time "session expired" sequence
// (logout + redirect) when the data source rejects the session.
//
// Components:
//   - Client: session-scoped context. Owns the retry policy, backoff, error
//     classifier, the auth failure Monitor and the lifetime of fetches.
//   - Cache[V]: keyed store of fetch results with staleness windows and
//     in-flight dedup. Values go through a Codec[V] into a Provider
//     (Ristretto, BigCache, Redis).
//   - GenStore: generation counter per key. Invalidate bumps it, which turns
//     the stored record stale without touching a fetch in flight.
//   - Monitor: opens an episode on the first auth failure, fires logout and
//     redirect once, and waits for SessionEstablished.
//
// Keys:
//
//	q:<ns>:<base64url(cbor(parts))>
//
// Usage:
//
//	client := querycache.NewClient(querycache.ClientOptions{
//	    Session:   sessions,   // Logout(ctx) error
//	    Navigator: router,     // RedirectTo(ctx, "/login")
//	})
//	todos, _ := querycache.New[[]Todo](client, querycache.Options[[]Todo]{
//	    Namespace: "todos",
//	    Provider:  provider,
//	    Codec:     codec.JSON[[]Todo]{},
//	})
//	list, err := todos.Get(ctx, querycache.MustKey("todos", userID), func(ctx context.Context) ([]Todo, error) {
//	    return api.ListTodos(ctx, userID)
//	})
//
// Retry budget: queries retry up to 3 times (4 attempts), mutations up to 2
// (3 attempts). Auth and permanent failures stop immediately.
package querycache
