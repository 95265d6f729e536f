package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/sebasr/bpmetrics/internal/library"
	"github.com/sebasr/bpmetrics/internal/models"
)

func (a *app) newRecordsCommand() *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "List and edit library records",
		Long: `List and edit the records stored in the phone library.

Examples:
  # Show every record, newest first
  bpmctl records list

  # Give a record a readable name
  bpmctl records rename 3 "Morning run"`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every record, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withLibrary(cmd, func(lib *library.Service) error {
				records, err := lib.List(cmd.Context())
				if err != nil {
					return err
				}
				return writeRecordTable(cmd.OutOrStdout(), records)
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record with its data points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return a.withLibrary(cmd, func(lib *library.Service) error {
				rec, err := lib.Get(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("record %d: %w", id, err)
				}
				return writeRecordDetail(cmd.OutOrStdout(), rec)
			})
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change a record's title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			return a.withLibrary(cmd, func(lib *library.Service) error {
				rec, err := lib.Rename(cmd.Context(), id, title)
				if err != nil {
					return fmt.Errorf("record %d: %w", id, err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Renamed record %d to %q\n", rec.ID, rec.Title)
				return err
			})
		},
	}

	deleteAllCmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every record and its data points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("refusing to delete all records without --yes")
			}
			return a.withLibrary(cmd, func(lib *library.Service) error {
				deleted, err := lib.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records\n", deleted)
				return err
			})
		},
	}
	deleteAllCmd.Flags().Bool("yes", false, "Confirm deletion")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Store the four sample records dated today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withLibrary(cmd, func(lib *library.Service) error {
				records, err := lib.SeedSamples(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d sample records\n", len(records))
				return err
			})
		},
	}

	recordsCmd.AddCommand(listCmd, showCmd, renameCmd, deleteAllCmd, seedCmd)
	return recordsCmd
}

func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}

// writeRecordTable renders the record list as a table followed by a count line
func writeRecordTable(w io.Writer, records []*models.LibraryRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Title", "Date", "Duration", "Points", "Avg", "Max", "Min"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(records))
	for _, rec := range records {
		data = append(data, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Title,
			rec.Date.String(),
			(time.Duration(rec.Duration) * time.Millisecond).String(),
			strconv.Itoa(len(rec.Points)),
			formatAvg(rec.Avg),
			formatPoint(rec.Max()),
			formatPoint(rec.Min()),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d records\n", len(records))
	return err
}

// writeRecordDetail prints a record header and its data points
func writeRecordDetail(w io.Writer, rec *models.LibraryRecord) error {
	ew := &errWriter{w: w}
	ew.printf("Record:   %d\n", rec.ID)
	ew.printf("Title:    %s\n", rec.Title)
	ew.printf("Date:     %s\n", rec.Date)
	ew.printf("Duration: %s\n", time.Duration(rec.Duration)*time.Millisecond)
	ew.printf("Average:  %s\n", formatAvg(rec.Avg))
	ew.printf("Max:      %s\n", formatPoint(rec.Max()))
	ew.printf("Min:      %s\n", formatPoint(rec.Min()))
	if ew.err != nil {
		return ew.err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Offset", "BPM"})
	data := make([][]string, 0, len(rec.Points))
	for _, p := range rec.Points {
		data = append(data, []string{
			(time.Duration(p.Timestamp) * time.Millisecond).String(),
			strconv.FormatFloat(p.BPM, 'f', 1, 64),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// errWriter keeps the first write error and skips every later write
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func formatAvg(avg *float64) string {
	if avg == nil {
		return "-"
	}
	return strconv.FormatFloat(*avg, 'f', 1, 64)
}

func formatPoint(p models.StoredPoint, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f @ %s", p.BPM, time.Duration(p.Timestamp)*time.Millisecond)
}
