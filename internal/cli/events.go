package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query stored login events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		for flag, key := range map[string]string{
			"computer": "computer_name",
			"ip":       "ip_address",
			"type":     "event_type",
			"status":   "status",
			"start":    "start",
			"end":      "end",
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				params.Set(key, v)
			}
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", limit))
		}

		events, err := apiClient().ListEvents(params)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(os.Stdout).Encode(events)
		}
		printEvents(events)
		return nil
	},
}

var eventsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a single login event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ev := models.EventPayload{Time: time.Now().UTC().Format(time.RFC3339)}
		ev.EventID, _ = cmd.Flags().GetString("event-id")
		ev.ComputerName, _ = cmd.Flags().GetString("computer")
		ev.UserName, _ = cmd.Flags().GetString("user")
		ev.EventType, _ = cmd.Flags().GetString("type")
		ev.IPAddress, _ = cmd.Flags().GetString("ip")
		ev.Status, _ = cmd.Flags().GetString("status")
		if t, _ := cmd.Flags().GetString("time"); t != "" {
			ev.Time = t
		}

		count, err := apiClient().Ingest([]models.EventPayload{ev})
		if err != nil {
			return err
		}
		fmt.Printf("Stored %d event(s)\n", count)
		return nil
	},
}

func printEvents(events []models.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMPUTER\tUSER\tIP\tTYPE\tSTATUS")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Time.Format(time.RFC3339), ev.ComputerName, ev.UserName,
			ev.IPAddress, ev.EventType, ev.Status)
	}
	w.Flush()
}

func init() {
	eventsListCmd.Flags().String("computer", "", "filter by computer name")
	eventsListCmd.Flags().String("ip", "", "filter by IP address")
	eventsListCmd.Flags().String("type", "", "filter by event type")
	eventsListCmd.Flags().String("status", "", "filter by status")
	eventsListCmd.Flags().String("start", "", "start of time range (RFC 3339)")
	eventsListCmd.Flags().String("end", "", "end of time range (RFC 3339)")
	eventsListCmd.Flags().Int("limit", 0, "maximum number of events")
	eventsListCmd.Flags().Bool("json", false, "output JSON")

	eventsSubmitCmd.Flags().String("event-id", "", "agent event ID")
	eventsSubmitCmd.Flags().String("computer", "", "computer name")
	eventsSubmitCmd.Flags().String("user", "", "user name")
	eventsSubmitCmd.Flags().String("type", "login", "event type")
	eventsSubmitCmd.Flags().String("ip", "", "source IP address")
	eventsSubmitCmd.Flags().String("status", "success", "event status")
	eventsSubmitCmd.Flags().String("time", "", "event time (RFC 3339, default now)")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsSubmitCmd)
}
