package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smart-stay/internal/storage"
)

const bookingTimeLayout = "2006-01-02 15:04"

var (
	bookingLimit   int
	bookingGuest   string
	bookingPending bool
)

var bookingCmd = &cobra.Command{
	Use:   "booking",
	Short: "Manage reservations",
}

var bookingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reservations, newest check-in first",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		bookings, err := provider.ListBookings(ctx, bookingLimit)
		if err != nil {
			slog.Error("Failed to list bookings", "error", err)
			os.Exit(1)
		}
		if len(bookings) == 0 {
			fmt.Println("No bookings found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCODE\tGUEST\tCHECK IN\tCHECK OUT\tPAYMENT\tPOWER")
		for _, b := range bookings {
			powerStatus := ""
			if b.PowerStatus != nil {
				powerStatus = *b.PowerStatus
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				b.ID,
				b.ReservationCode,
				b.GuestName,
				b.CheckIn.Local().Format(bookingTimeLayout),
				b.CheckOut.Local().Format(bookingTimeLayout),
				b.PaymentStatus,
				powerStatus,
			)
		}
		w.Flush()
	},
}

var bookingAddCmd = &cobra.Command{
	Use:   "add <reservation_code> <check_in> <check_out>",
	Short: "Add or update a reservation",
	Long:  `Add a reservation. Times use the local zone in the form "2006-01-02 15:04". An existing reservation code is updated.`,
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		checkIn, err := time.ParseInLocation(bookingTimeLayout, args[1], time.Local)
		if err != nil {
			slog.Error("Invalid check-in time", "value", args[1], "error", err)
			os.Exit(1)
		}
		checkOut, err := time.ParseInLocation(bookingTimeLayout, args[2], time.Local)
		if err != nil {
			slog.Error("Invalid check-out time", "value", args[2], "error", err)
			os.Exit(1)
		}

		status := storage.BookingStatusPaid
		if bookingPending {
			status = storage.BookingStatusPending
		}
		id, err := provider.CreateBooking(ctx, storage.Booking{
			ReservationCode: args[0],
			GuestName:       bookingGuest,
			CheckIn:         checkIn,
			CheckOut:        checkOut,
			PaymentStatus:   status,
		})
		if err != nil {
			slog.Error("Failed to add booking", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Booking %s stored with id %d\n", args[0], id)
	},
}

var bookingDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a reservation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			slog.Error("Invalid booking id", "id", args[0], "error", err)
			os.Exit(1)
		}

		err = provider.DeleteBooking(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("Booking %d not found\n", id)
			os.Exit(1)
		}
		if err != nil {
			slog.Error("Failed to delete booking", "id", id, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Booking %d deleted\n", id)
	},
}

func init() {
	bookingListCmd.Flags().IntVar(&bookingLimit, "limit", 50, "maximum number of bookings to list")
	bookingAddCmd.Flags().StringVar(&bookingGuest, "guest", "", "guest name")
	bookingAddCmd.Flags().BoolVar(&bookingPending, "pending", false, "mark the payment as pending")

	bookingCmd.AddCommand(bookingListCmd)
	bookingCmd.AddCommand(bookingAddCmd)
	bookingCmd.AddCommand(bookingDeleteCmd)
	rootCmd.AddCommand(bookingCmd)
}
