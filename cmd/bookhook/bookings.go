package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"bookhook/internal/booking"
	"bookhook/internal/config"
	"bookhook/pkg/fileutil"

	"github.com/spf13/cobra"
)

var (
	bookingsLimit      int
	bookingsJSON       bool
	bookingsDeliveries bool
)

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "List stored bookings",
	Long: `List bookings from the booking database, latest start time first.

With --deliveries, list the most recent webhook deliveries and their outcome
instead.`,
	Args: cobra.NoArgs,
	RunE: runBookings,
}

func init() {
	bookingsCmd.Flags().IntVarP(&bookingsLimit, "limit", "n", 20, "Maximum number of rows to show")
	bookingsCmd.Flags().BoolVar(&bookingsJSON, "json", false, "Print JSON instead of a table")
	bookingsCmd.Flags().BoolVar(&bookingsDeliveries, "deliveries", false, "Show the delivery log instead of bookings")
}

func runBookings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if !fileutil.FileExists(cfg.Store.Path) {
		return fmt.Errorf("booking database not found: %s", cfg.Store.Path)
	}

	store, err := booking.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open booking database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var rows interface{}
	if bookingsDeliveries {
		records, err := store.RecentDeliveries(ctx, bookingsLimit)
		if err != nil {
			return err
		}
		rows = records
		if !bookingsJSON {
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RECEIVED\tOUTCOME\tEVENT\tINVITEE\tREQUEST")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ReceivedAt.Format(time.RFC3339), r.Outcome, r.EventType, r.InviteeID, r.RequestID)
			}
			return w.Flush()
		}
	} else {
		bookings, err := store.ListBookings(ctx, bookingsLimit)
		if err != nil {
			return err
		}
		rows = bookings
		if !bookingsJSON {
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "START\tSTATUS\tEVENT\tINVITEE\tEMAIL")
			for _, b := range bookings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					b.StartTime.Format(time.RFC3339), b.Status, b.EventName, b.Name, b.Email)
			}
			return w.Flush()
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
