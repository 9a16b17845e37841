package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/client"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect background index jobs",
	Long: `List all background index jobs or inspect a specific job by ID.

Jobs live in server memory and are gone after a restart.

Examples:
  spoilerguard jobs           # List all jobs
  spoilerguard jobs abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return showJob(cmd.Context(), args[0])
	}
	return listJobs(cmd.Context())
}

func listJobs(ctx context.Context) error {
	jobs, err := apiClient.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if outputJSON {
		return printJSON(os.Stdout, jobs)
	}
	if len(jobs) == 0 {
		fmt.Println("No index jobs on the server")
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		rows = append(rows, []string{
			job.ID,
			job.Type,
			string(job.Status),
			progressCell(job.Progress, job.Total),
			strings.Join(job.EpisodeIDs, ","),
			job.StartedAt.Local().Format("15:04:05"),
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "TYPE", "STATUS", "PROGRESS", "EPISODES", "STARTED"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := apiClient.GetJob(ctx, id)
	if client.IsNotFound(err) {
		return fmt.Errorf("no job %q on the server (jobs are lost on restart)", id)
	}
	if err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	if outputJSON {
		return printJSON(os.Stdout, job)
	}

	rows := [][]string{
		{"id", job.ID},
		{"type", job.Type},
		{"status", string(job.Status)},
		{"episodes", strings.Join(job.EpisodeIDs, ", ")},
		{"progress", progressCell(job.Progress, job.Total)},
		{"started", job.StartedAt.Local().Format(time.DateTime)},
	}
	if job.CompletedAt != nil {
		rows = append(rows,
			[]string{"completed", job.CompletedAt.Local().Format(time.DateTime)},
			[]string{"took", job.CompletedAt.Sub(job.StartedAt).Round(time.Millisecond).String()},
		)
	}
	if job.Error != "" {
		rows = append(rows, []string{"error", job.Error})
	}
	fmt.Println(renderTable([]string{"FIELD", "VALUE"}, rows, []columnAlignment{alignRight, alignLeft}))

	if len(job.Results) > 0 || len(job.Errors) > 0 {
		fmt.Print("\n" + jobSummary(job, defaultTheme))
	}
	return nil
}

func progressCell(done, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", done, total)
}
