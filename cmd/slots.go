package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/booking"
	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/schedule"
)

func newSlotsCmd() *cobra.Command {
	var date string

	c := &cobra.Command{
		Use:   "slots",
		Short: "Print the slots of a day with their remaining capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			bcfg := config.LoadBookingConfig()

			ctx := context.Background()
			st, err := openStores(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := booking.NewService(st.Reservations, bcfg.Rules(), booking.Options{
				MaxCapacity: bcfg.MaxCapacity,
				Logger:      newLogger(),
			})
			now := time.Now()
			if date == "" {
				date = now.In(bcfg.Location).Format(schedule.DateLayout)
			}
			hours, err := svc.OpeningHours(date)
			if err != nil {
				return err
			}
			day, err := svc.AvailableSlots(ctx, date, now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s) %s-%s", hours.Date, hours.Weekday, hours.Open, hours.Close)
			if hours.Holiday != "" {
				fmt.Fprintf(out, " %s", hours.Holiday)
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tREMAINING\tSTATUS")
			for _, s := range day.Slots {
				status := "open"
				switch {
				case s.IsPast:
					status = "past"
				case !s.Available:
					status = "full"
				}
				t := s.Time
				if s.NextDay {
					t += " (+1)"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", t, s.RemainingCapacity, status)
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVar(&date, "date", "", "day to list (YYYY-MM-DD, default today)")
	return c
}
