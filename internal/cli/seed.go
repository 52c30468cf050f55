package cli

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate and submit synthetic login events",
	Long: `seed generates realistic-looking login events and submits them in
batches. A fraction of events are failures, and events are spread backwards
over the configured time window so sweeps and reports have data to work on.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().Int("count", 100, "total events to generate")
	seedCmd.Flags().Int("batch-size", 25, "events per request")
	seedCmd.Flags().Int("computers", 10, "number of distinct computers")
	seedCmd.Flags().Float64("failure-rate", 0.2, "fraction of events with failure status")
	seedCmd.Flags().Duration("spread", 24*time.Hour, "spread events over this past window")
	seedCmd.Flags().Int64("rng-seed", 0, "deterministic generator seed (0 = random)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	computers, _ := cmd.Flags().GetInt("computers")
	failureRate, _ := cmd.Flags().GetFloat64("failure-rate")
	spread, _ := cmd.Flags().GetDuration("spread")
	rngSeed, _ := cmd.Flags().GetInt64("rng-seed")

	faker := gofakeit.New(rngSeed)

	// Fixed fleet so events pile up on the same identities.
	fleet := make([]fleetEntry, computers)
	for i := range fleet {
		fleet[i] = fleetEntry{
			computer: fmt.Sprintf("%s-%02d", faker.AppName(), i),
			user:     faker.Username(),
			ip:       faker.IPv4Address(),
		}
	}

	client := apiClient()
	now := time.Now().UTC()
	total := 0

	for total < count {
		n := batchSize
		if remaining := count - total; remaining < n {
			n = remaining
		}

		batch := make([]models.EventPayload, n)
		for i := range batch {
			entry := fleet[faker.IntRange(0, computers-1)]
			status := "success"
			if faker.Float64Range(0, 1) < failureRate {
				status = models.EventStatusFailure
			}
			offset := time.Duration(faker.Number(0, int(spread/time.Second))) * time.Second
			batch[i] = models.EventPayload{
				EventID:      faker.UUID(),
				Time:         now.Add(-offset).Format(time.RFC3339),
				ComputerName: entry.computer,
				UserName:     entry.user,
				EventType:    faker.RandomString([]string{"login", "logout", "unlock", "rdp_login"}),
				IPAddress:    entry.ip,
				Status:       status,
			}
		}

		stored, err := client.Ingest(batch)
		if err != nil {
			return fmt.Errorf("after %d events: %w", total, err)
		}
		total += stored
		fmt.Printf("Submitted %d/%d events\n", total, count)
	}

	return nil
}

type fleetEntry struct {
	computer string
	user     string
	ip       string
}
