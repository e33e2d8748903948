package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/osim/datarecording"
	"github.com/sarchlab/osim/instrumentation/tracing"
)

var reportCmd = &cobra.Command{
	Use:   "report <trace db>",
	Short: "Summarize the processes recorded in a trace database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		summaries, err := summarize(cmd.Context(), reader)
		if err != nil {
			return err
		}

		return printReport(cmd.OutOrStdout(), summaries)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

type processSummary struct {
	ID          string
	Script      string
	Start       uint64
	End         uint64
	Dispatches  int
	PageFaults  int
	Preemptions int
	Outcome     string
}

func (p processSummary) turnaround() uint64 {
	return p.End - p.Start
}

func summarize(
	ctx context.Context,
	reader *datarecording.Reader,
) ([]processSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	reader.MapTable(tracing.TaskTable, tracing.TaskEntry{})
	reader.MapTable(tracing.StepTable, tracing.StepEntry{})

	tasks, err := reader.Query(ctx, tracing.TaskTable, datarecording.QueryParams{
		Where:   "Kind = ?",
		Args:    []any{tracing.KindProcess},
		OrderBy: "StartTime, ID",
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]processSummary, 0, len(tasks))
	index := make(map[string]int, len(tasks))

	for _, row := range tasks {
		t := row.(*tracing.TaskEntry)
		index[t.ID] = len(summaries)
		summaries = append(summaries, processSummary{
			ID:      t.ID,
			Script:  t.What,
			Start:   t.StartTime,
			End:     t.EndTime,
			Outcome: "done",
		})
	}

	steps, err := reader.Query(ctx, tracing.StepTable, datarecording.QueryParams{
		OrderBy: "Time",
	})
	if err != nil {
		return nil, err
	}

	for _, row := range steps {
		step := row.(*tracing.StepEntry)

		i, ok := index[step.TaskID]
		if !ok {
			continue
		}

		switch step.What {
		case "dispatch":
			summaries[i].Dispatches++
		case "page_fault":
			summaries[i].PageFaults++
		case "preempt":
			summaries[i].Preemptions++
		case "failed", "halted":
			summaries[i].Outcome = step.What
		}
	}

	return summaries, nil
}

func printReport(w io.Writer, summaries []processSummary) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "PROCESS\tSCRIPT\tSTART\tEND\tTURNAROUND\tDISPATCHES\tFAULTS\tPREEMPTIONS\tOUTCOME")

	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.ID, s.Script, s.Start, s.End, s.turnaround(),
			s.Dispatches, s.PageFaults, s.Preemptions, s.Outcome)
	}

	return tw.Flush()
}
