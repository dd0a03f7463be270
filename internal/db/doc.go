// Package db exposes one Db capability over databases whose drivers behave
// very differently.
//
// Adapters
//   - BlockingDb wraps a BlockingBackend (bun over database/sql). Every call
//     clones the backend handle, captures its arguments by value and runs on
//     the offload pool, so the caller's goroutine only waits on a channel.
//   - NativeDb wraps a NativeBackend (pgx). Calls run directly with the
//     caller's context.
//
// Callers pick neither: Open reads the configuration and returns a Session.
//
// Errors
//   - Every failure is an *Error. errors.Is(err, ErrBackend) and
//     errors.Is(err, ErrChannel) tell a database failure from a failure of the
//     offload pool; errors.Is(err, ErrDuplicate) recognises unique-constraint
//     violations. The driver error is available unchanged via errors.As or
//     Error.Err.
//
// Testing notes
//   - Use "file:<name>?mode=memory&cache=shared" with sqlite for real SQL
//     semantics shared across pool connections.
//   - pgxmock pools satisfy PgxConn for the native backend.
package db
