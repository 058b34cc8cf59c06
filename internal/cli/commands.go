package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bilancio/internal/core"
	"bilancio/internal/recurrence"
	"bilancio/internal/storage"
)

// NewRootCommand builds bilancio-cli. openStore opens the scheduler store
// for the commands that read it.
func NewRootCommand(openStore func() (*storage.SQLiteRepository, error)) *cobra.Command {
	var asJSON bool
	root := &cobra.Command{
		Use:           "bilancio-cli",
		Short:         "Inspect budget periods and recurring schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")

	out := func(cmd *cobra.Command) printer {
		return printer{w: cmd.OutOrStdout(), json: asJSON}
	}

	root.AddCommand(
		newWindowCommand(out),
		newNextCommand(out),
		newAnchorCommand(out),
		newRunsCommand(out, openStore),
	)
	return root
}

type printer struct {
	w    io.Writer
	json bool
}

func (p printer) print(v any, text func(io.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}

func parseDateFlag(s string) (core.Date, error) {
	if s == "" {
		return core.Today(), nil
	}
	return core.ParseDate(s)
}

func newWindowCommand(out func(*cobra.Command) printer) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "window <frequency>",
		Short: "Show the budget period of a frequency containing a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := core.ParseFrequency(args[0])
			if err != nil {
				return err
			}
			ref, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			w, err := recurrence.ComputePeriodWindow(freq, ref)
			if err != nil {
				return err
			}
			return out(cmd).print(w, func(o io.Writer) {
				fmt.Fprintf(o, "%s\t%s\t%d days\n", w.Start, w.End, w.Days())
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	return cmd
}

func newNextCommand(out func(*cobra.Command) printer) *cobra.Command {
	var (
		after      string
		dayOfWeek  int
		dayOfMonth int
		lastDay    bool
		count      int
	)
	cmd := &cobra.Command{
		Use:   "next <frequency>",
		Short: "List the next dates a schedule fires on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := core.ParseFrequency(args[0])
			if err != nil {
				return err
			}
			from, err := parseDateFlag(after)
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			var anchor recurrence.Anchor
			if cmd.Flags().Changed("day-of-week") {
				if dayOfWeek < 0 || dayOfWeek > 6 {
					return fmt.Errorf("%w: day of week %d", recurrence.ErrInvalidAnchor, dayOfWeek)
				}
				anchor = recurrence.OnWeekday(time.Weekday(dayOfWeek))
			}
			switch {
			case lastDay:
				anchor.DayOfMonth = ptr(recurrence.LastDay())
			case cmd.Flags().Changed("day-of-month"):
				dom, err := recurrence.Day(dayOfMonth)
				if err != nil {
					return err
				}
				anchor.DayOfMonth = &dom
			}

			dates := make([]core.Date, 0, count)
			cur := from
			for range count {
				if cur, err = recurrence.NextOccurrence(freq, anchor, cur); err != nil {
					return err
				}
				dates = append(dates, cur)
			}
			return out(cmd).print(dates, func(o io.Writer) {
				for _, d := range dates {
					fmt.Fprintf(o, "%s\t%s\n", d, d.Weekday())
				}
			})
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "Count from the day after this date (default today)")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "Weekday for weekly schedules, 0 = Sunday")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "Day of month (1-31) for month-based schedules")
	cmd.Flags().BoolVar(&lastDay, "last-day", false, "Fire on the last day of the month")
	cmd.Flags().IntVar(&count, "count", 1, "Number of dates to list")
	cmd.MarkFlagsMutuallyExclusive("day-of-month", "last-day")
	return cmd
}

func newAnchorCommand(out func(*cobra.Command) printer) *cobra.Command {
	return &cobra.Command{
		Use:   "anchor <stored>",
		Short: "Decode a stored day-of-month (1-31, 32 = last day)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("stored day of month must be a number: %q", args[0])
			}
			e, err := recurrence.DecodeAnchorForEditing(stored)
			if err != nil {
				return err
			}
			return out(cmd).print(e, func(o io.Writer) {
				fmt.Fprintf(o, "%s\tlast day: %t\n", e.DisplayValue, e.IsLastDay)
			})
		},
	}
}

type runView struct {
	RunDate     core.Date `json:"runDate"`
	MessageID   string    `json:"messageId"`
	FiredAt     time.Time `json:"firedAt"`
	PublishedAt time.Time `json:"publishedAt"`
}

func newRunsCommand(out func(*cobra.Command) printer, openStore func() (*storage.SQLiteRepository, error)) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs <recurring-id>",
		Short: "Show the fire log of a recurring transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if openStore == nil {
				return fmt.Errorf("no scheduler store configured")
			}
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListRuns(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			views := make([]runView, 0, len(runs))
			for _, r := range runs {
				views = append(views, runView{RunDate: r.RunDate, MessageID: r.MessageID, FiredAt: r.FiredAt, PublishedAt: r.PublishedAt})
			}
			return out(cmd).print(views, func(o io.Writer) {
				for _, v := range views {
					status := "published"
					if v.PublishedAt.IsZero() {
						status = "pending"
					}
					fmt.Fprintf(o, "%s\t%s\t%s\n", v.RunDate, v.MessageID, status)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	return cmd
}

func ptr[T any](v T) *T { return &v }
