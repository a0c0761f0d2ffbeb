// Package auth implements email and password authentication for the exam
// portal: signup with an emailed verification code, a second code on every
// login, password reset links, and the session gate that protects the quiz
// pages and the account API.
//
// Account lifecycle:
//   - Accounts move between unverified, verified_logged_out and
//     verified_logged_in. AccountStateMachine owns the transition graph and
//     persists each step through a Mutation so the state change and its
//     conditional UPDATE happen inside one transaction.
//   - Verification codes and reset tokens are single use. They are consumed
//     with an UPDATE that re-checks value and expiry, so concurrent
//     submissions of the same code can not both succeed.
//
// Sessions:
//   - Every signed token names a session record. SessionGate checks the
//     signature, the record and the account login flag on each request, so
//     logout and password reset revoke tokens before they expire.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the flows and the
//     state machine. Sinks run best-effort (errors are logged) so metrics or
//     audit logs never block authentication.
package auth
