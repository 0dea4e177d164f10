// Package session manages the lifecycle of authenticated device sessions.
//
// A Session is one device context of a principal. It ends when its absolute
// lifetime passes or when it sees no activity for longer than the inactivity
// timeout, whichever comes first. Dead sessions are treated as absent on every
// read and removed lazily; a periodic sweep collects the rest.
//
// The Manager enforces the rules and emits events, a Store persists records.
// MemoryStore ships with this package; pgstore and sqlitestore provide
// durable backends.
//
//	store := session.NewMemoryStore()
//	manager, err := session.NewManager(store,
//		session.WithMaxSessions(5),
//		session.WithInactivityTimeout(30*time.Minute),
//		session.WithPublisher(fab),
//		session.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//
//	sess, err := manager.Create(ctx, session.CreateParams{
//		PrincipalID:   userID,
//		Device:        session.DeviceFromUserAgent(r.UserAgent()),
//		OriginAddress: clientip.GetIP(r),
//	})
//
// # Cap enforcement
//
// Each principal holds at most MaxSessions live sessions. Create inserts the
// new session and evicts the oldest ones by creation time in a single atomic
// store operation, so concurrent logins never leave a principal over the cap.
//
// # Events
//
// Mutations publish fabric events after the store call succeeds:
//
//   - Create publishes one session-list-changed.
//   - Delete publishes force-logout targeted at the removed session.
//   - DeleteAllExcept publishes force-logout excluding the kept session, then
//     session-list-changed.
//
// SweepExpired publishes nothing and returns the removed sessions so the
// caller can notify each principal once. Publish failures are logged and
// never fail the mutation.
//
// # Absent results
//
// Lookups return a nil *Session with a nil error when nothing live matches.
// Errors are reserved for store failures and wrap ErrStoreUnavailable when
// the datastore cannot be reached.
package session
