// Package cli implements slactl, the operator tool for checking business
// calendar and SLA arithmetic without running the server.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/warp/action-tracker/calendar"
	"github.com/warp/action-tracker/factory"
	"github.com/warp/action-tracker/sla"
)

// RootCmd returns the slactl root command with every subcommand attached.
// now supplies the default year and deadline start.
func RootCmd(now func() time.Time) *cobra.Command {
	cal := calendar.NewBrazil()

	root := &cobra.Command{
		Use:   "slactl",
		Short: "Business calendar and SLA calculator",
		Long: `slactl answers the questions coordinators ask about action-item SLAs:
which days are holidays, whether a date is a business day, and when an
item created at a given instant falls due.`,
		SilenceUsage: true,
	}

	root.AddCommand(holidaysCmd(cal, now))
	root.AddCommand(businessDayCmd(cal))
	root.AddCommand(businessDaysCmd(cal))
	root.AddCommand(deadlineCmd(cal, now))
	root.AddCommand(rulesCmd())

	return root
}

func holidaysCmd(cal *calendar.National, now func() time.Time) *cobra.Command {
	return &cobra.Command{
		Use:   "holidays [year]",
		Short: "List national holidays of a year",
		Example: `  slactl holidays
  slactl holidays 2027`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := now().Year()
			if len(args) == 1 {
				y, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid year %q", args[0])
				}
				year = y
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, h := range cal.Holidays(year).Sorted() {
				day := h.Date.Weekday().String()
				if h.Date.IsWeekend() {
					day = color.New(color.FgHiBlack).Sprint(day)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", h.Date, day, h.Name)
			}
			return w.Flush()
		},
	}
}

func businessDayCmd(cal *calendar.National) *cobra.Command {
	return &cobra.Command{
		Use:     "business-day <date>",
		Short:   "Check whether a date is a business day",
		Example: `  slactl business-day 2026-11-02`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := calendar.ParseDate(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cal.IsBusinessDate(d) {
				fmt.Fprintf(out, "%s (%s) is a %s\n", d, d.Weekday(), color.GreenString("business day"))
				return nil
			}

			reason := "weekend"
			if name, ok := cal.Holidays(d.Year)[d]; ok {
				reason = name
			}
			fmt.Fprintf(out, "%s (%s) is %s: %s\n", d, d.Weekday(), color.RedString("not a business day"), reason)
			fmt.Fprintf(out, "next business day: %s\n", calendar.NextBusinessDay(cal, d))
			return nil
		},
	}
}

func businessDaysCmd(cal *calendar.National) *cobra.Command {
	return &cobra.Command{
		Use:     "business-days <from> <to>",
		Short:   "Count business days in [from, to], both ends included",
		Example: `  slactl business-days 2026-10-16 2026-10-26`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := calendar.ParseDate(args[0])
			if err != nil {
				return err
			}
			to, err := calendar.ParseDate(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), calendar.BusinessDaysBetween(cal, from, to))
			return nil
		},
	}
}

func deadlineCmd(cal *calendar.National, now func() time.Time) *cobra.Command {
	var (
		at          string
		severity    string
		hours       int
		hoursPerDay int
	)

	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Compute the SLA deadline for an item created at an instant",
		Example: `  slactl deadline --at 2026-10-16T16:00:00Z --severity critical
  slactl deadline --severity major --hours 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				start = t
			}
			sev, err := sla.ParseSeverity(severity)
			if err != nil {
				return err
			}

			engine := sla.NewEngine(cal, sla.NewFixedClock(start))
			engine.HoursPerDay = hoursPerDay

			resolution := sla.DefaultHours(sev).Resolution
			if hours > 0 {
				resolution = hours
			}
			deadline := engine.CalculateDeadline(start, sev, &resolution)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created:   %s (%s)\n", start.Format(time.RFC3339), start.Weekday())
			fmt.Fprintf(out, "severity:  %s, %d business hours\n", sev, resolution)
			fmt.Fprintf(out, "deadline:  %s (%s)\n", color.YellowString(deadline.Format(time.RFC3339)), deadline.Weekday())
			fmt.Fprintf(out, "escalates: after %d elapsed hours\n", sla.DefaultHours(sev).Escalation)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Creation instant, RFC 3339 (default now)")
	cmd.Flags().StringVarP(&severity, "severity", "s", "minor", "Item severity (critical, major, minor, info)")
	cmd.Flags().IntVar(&hours, "hours", 0, "Resolution target in business hours (default per severity)")
	cmd.Flags().IntVar(&hoursPerDay, "hours-per-day", calendar.DefaultHoursPerDay, "Business hours per day")

	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "SLA rule files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Parse an SLA rule file and print the rules",
		Long: `Parse an SLA rule file the way the server does at startup.
Fails on unknown severities or categories, negative hours, and duplicate
active rules for the same category and severity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rules, err := factory.NewRuleFactory().ParseRuleSet(data)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tSEVERITY\tRESOLUTION\tESCALATION\tESCALATE TO\tACTIVE")
			for _, r := range rules {
				category := "*"
				if r.Category != nil {
					category = r.Category.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%dh\t%dh\t%s\t%t\n",
					r.ID, category, r.Severity, r.ResolutionHours, r.EscalationHours, r.EscalateTo, r.Active)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("%d rules OK", len(rules)))
			return nil
		},
	})

	return cmd
}
