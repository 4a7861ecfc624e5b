// Command pdfproc runs the PDF processing workers and submits or inspects
// jobs against the shared Redis backend.
//
// Usage:
//
//	pdfproc worker
//	pdfproc submit --parser pypdf report.pdf
//	pdfproc status <job-id>
//	pdfproc result <job-id>
//	pdfproc jobs
//	pdfproc delete <job-id>
//
// Settings come from the environment; see pdfprocessor.LoadConfig.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
