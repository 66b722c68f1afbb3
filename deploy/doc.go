// Package deploy submits confidential workloads to the CVM cloud and tracks
// their provisioning to a terminal state.
//
// # Submission protocol
//
// Submitter.Submit runs a strictly ordered protocol: validate the spec,
// resolve an execution pool when none is pinned, assemble the unencrypted
// configuration, request an encryption key bound to that exact
// configuration, encrypt the secret environment against it, and submit the
// final payload. A failure at any step aborts the whole submission; there is
// no partial-success state. The remote side may have allocated a key for a
// submission that ultimately failed, which is an accepted inconsistency: the
// caller retries the whole Submit call and a fresh key is fetched.
//
// Submitter.Upgrade is the structurally identical variant for existing
// deployments. It encrypts against the public key already bound to the
// deployment and targets the configuration-replace operation.
//
// # Status polling
//
// Poller.Monitor observes an eventually-consistent remote resource under
// network unreliability. Each iteration queries the status with a short
// timeout, classifies it (running, failure, still provisioning), and
// notifies an Observer on transitions. Query errors are tolerated rather than
// fatal: the session reports them and keeps polling until MaxAttempts, with
// a halved interval after an error and one extended pause after three
// consecutive errors. The wait between iterations is corrected for the time
// the query itself took, keeping the wall-clock cadence near the configured
// interval.
//
// One goroutine drives one session; sessions share no mutable state and
// need no locking.
package deploy
