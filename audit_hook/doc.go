// Package audithook is an extension that turns job lifecycle events into
// structured audit events.
//
// Every hook emits an [AuditEvent] through the [Recorder] interface with a
// severity (info for normal operations, warning for failed parses,
// critical for dead-lettered jobs) and metadata such as filename, parser
// and elapsed time.
//
// # Usage
//
//	// Write the trail to a dedicated logger.
//	audithook.New(audithook.LogRecorder(auditLogger))
//
//	// Or bridge to any backend.
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return backend.Write(ctx, evt)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobDeadLettered,
//	    ),
//	)
package audithook
