// Package verification owns the email verification job lifecycle: single
// address checks, bulk CSV uploads, provider job start/status/download,
// and list deletion. It binds provider calls to persisted log and ledger
// state; handlers stay thin and repositories stay dumb.
package verification
