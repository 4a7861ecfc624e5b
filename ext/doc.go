// Package ext defines the extension system for the PDF processor.
//
// Extensions are notified of job lifecycle events and can react to them,
// for example by recording metrics or writing an audit trail. Each
// lifecycle hook is a separate interface so extensions opt in only to the
// events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, r *job.Record, res *result.Result, elapsed time.Duration) error {
//	    log.Printf("job %s: %d pages in %s", r.ID, len(res.Pages), elapsed)
//	    return nil
//	}
//
// # Hooks
//
//   - [JobSubmitted]: the gateway recorded and enqueued a job
//   - [JobStarted]: a worker moved the job to PROCESSING
//   - [JobCompleted]: the result is stored and the job is COMPLETED
//   - [JobFailed]: the job ended FAILED
//   - [JobDeadLettered]: recovery gave up on a repeatedly delivered entry
//   - [JobDeleted]: the job and its artifacts were removed
//   - [Shutdown]: the process is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never affect the job.
package ext
