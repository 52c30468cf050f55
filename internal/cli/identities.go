package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Inspect and manage per-computer identity summaries",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identity summaries, most recently seen first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := apiClient().ListIdentities()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(os.Stdout).Encode(ids)
		}
		printIdentities(ids)
		return nil
	},
}

var identitiesGetCmd = &cobra.Command{
	Use:   "get <computer-name>",
	Short: "Show one identity summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := apiClient().GetIdentity(args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(id)
	},
}

var identitiesStatusCmd = &cobra.Command{
	Use:   "status <computer-name> <active|suspended|blocked>",
	Short: "Update the lifecycle status of an identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := apiClient().SetIdentityStatus(args[0], models.IdentityStatus(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", id.ComputerName, id.Status)
		return nil
	},
}

func printIdentities(ids []models.Identity) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPUTER\tUSER\tIP\tLAST SEEN\tEVENTS\tFAILED\tSTATUS")
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			id.ComputerName, id.UserName, id.IPAddress,
			id.LastSeen.Format(time.RFC3339), id.TotalEvents, id.FailedAttempts, id.Status)
	}
	w.Flush()
}

func init() {
	identitiesListCmd.Flags().Bool("json", false, "output JSON")
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesGetCmd)
	identitiesCmd.AddCommand(identitiesStatusCmd)
}
