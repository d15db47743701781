package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/kilianp07/soh/core/clock"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/schedule"
	"github.com/kilianp07/soh/infra/logger"
	_ "github.com/kilianp07/soh/infra/store"
	"github.com/kilianp07/soh/pkg/export"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage discharge test schedules in the configured store",
}

var (
	createStart   string
	createCurrent float64
	listFormat    string
)

func init() {
	list := &cobra.Command{
		Use:   "list",
		Short: "List active schedules",
		Args:  cobra.NoArgs,
		RunE: withService(func(cmd *cobra.Command, svc *schedule.Service, _ []string) error {
			views, err := svc.List(background(cmd))
			if err != nil {
				return err
			}
			if listFormat != "" && listFormat != "table" {
				return export.Write(cmd.OutOrStdout(), listFormat, views)
			}
			return printViews(cmd.OutOrStdout(), views)
		}),
	}
	list.Flags().StringVar(&listFormat, "format", "table", "output format: table, csv or json")
	create := &cobra.Command{
		Use:   "create STRING_ID",
		Short: "Create a pending test for a battery string",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(cmd *cobra.Command, svc *schedule.Service, args []string) error {
			start := time.Now().UTC()
			if createStart != "" {
				t, err := time.Parse(time.RFC3339, createStart)
				if err != nil {
					return errors.Wrapf(schedule.ErrValidation, "start %q is not RFC3339", createStart)
				}
				start = t.UTC()
			}
			s, err := svc.Create(background(cmd), args[0], start, createCurrent)
			if err != nil {
				return err
			}
			return printViews(cmd.OutOrStdout(), []model.ScheduleView{s.View()})
		}),
	}
	create.Flags().StringVar(&createStart, "start", "", "start time (RFC3339), now when empty")
	create.Flags().Float64Var(&createCurrent, "current", 0, "commanded discharge current in A")

	stop := &cobra.Command{
		Use:   "stop ID",
		Short: "Request the end of a running test",
		Args:  cobra.ExactArgs(1),
		RunE:  byID(func(svc *schedule.Service) idOp { return svc.Stop }),
	}
	remove := &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a pending test",
		Args:  cobra.ExactArgs(1),
		RunE:  byID(func(svc *schedule.Service) idOp { return svc.Remove }),
	}
	scheduleCmd.AddCommand(list, create, stop, remove)
	rootCmd.AddCommand(scheduleCmd)
}

type idOp = func(ctx context.Context, id int64) (model.Schedule, error)

func byID(op func(*schedule.Service) idOp) func(*cobra.Command, []string) error {
	return withService(func(cmd *cobra.Command, svc *schedule.Service, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(schedule.ErrValidation, "invalid id %q", args[0])
		}
		s, err := op(svc)(background(cmd), id)
		if err != nil {
			return err
		}
		return printViews(cmd.OutOrStdout(), []model.ScheduleView{s.View()})
	})
}

func withService(run func(cmd *cobra.Command, svc *schedule.Service, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := schedule.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		svc, err := schedule.NewService(store, clock.System{}, nil, logger.New("cli"))
		if err != nil {
			return err
		}
		return run(cmd, svc, args)
	}
}

func printViews(w io.Writer, views []model.ScheduleView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTRING\tCURRENT\tSTATE\tSOH\tSTART\tEND")
	for _, v := range views {
		soh, end := "-", "-"
		if v.SoH != nil {
			soh = strconv.FormatFloat(*v.SoH, 'f', 2, 64)
		}
		if v.EndTime != nil {
			end = v.EndTime.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%g\t%s\t%s\t%s\t%s\n",
			v.ID, v.StringID, v.Current, v.State, soh, v.StartTime.Format(time.RFC3339), end)
	}
	return tw.Flush()
}
