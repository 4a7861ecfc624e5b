package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
)

func newSubmitCmd(a *app) *cobra.Command {
	var parserName string
	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Upload PDF files and queue them for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []*job.Record
			for _, path := range args {
				rec, err := submitFile(a, cmd, path, parserName)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				recs = append(recs, rec)
			}
			return printJSON(recs)
		},
	}
	cmd.Flags().StringVarP(&parserName, "parser", "p", string(job.ParserPyPDF), "parser variant: pypdf, gemini or mistral")
	return cmd
}

func submitFile(a *app, cmd *cobra.Command, path, parserName string) (*job.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return a.engine.Gateway().Submit(cmd.Context(), filepath.Base(path), parserName, f)
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := id.ParseJobID(args[0])
			if err != nil {
				return err
			}
			rec, err := a.engine.Gateway().Status(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}

func newResultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "result JOB_ID",
		Short: "Print the extracted pages of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := id.ParseJobID(args[0])
			if err != nil {
				return err
			}
			res, err := a.engine.Gateway().Result(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func newJobsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List all jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := a.engine.Gateway().List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "JOB ID\tSTATUS\tPARSER\tFILENAME\tCREATED\tERROR")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Status, r.Parser, r.Filename, r.CreatedAt.Format(time.RFC3339), r.Error)
			}
			fmt.Fprintf(tw, "\n%d job(s)\n", len(recs))
			return tw.Flush()
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete JOB_ID",
		Short: "Delete a job, its result and its uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := id.ParseJobID(args[0])
			if err != nil {
				return err
			}
			if err := a.engine.Gateway().Delete(cmd.Context(), jobID); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Job %s deleted successfully\n", jobID)
			return nil
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the Redis backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.engine.Gateway().Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "healthy")
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
