package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"table-call/internal/backend"
	"table-call/internal/dashboard"
)

var callsDate string

var callsCmd = &cobra.Command{
	Use:         "calls",
	Short:       "Inspect and close active calls",
	Annotations: map[string]string{noStorage: ""},
}

func newBackendClient() (*backend.Client, error) {
	return backend.New(cfg.BackendURL, cfg.RequestTimeout)
}

func parseLocation(arg string) (int, error) {
	location, err := strconv.Atoi(arg)
	if err != nil || location <= 0 {
		return 0, fmt.Errorf("invalid location %q", arg)
	}
	return location, nil
}

var callsActiveCmd = &cobra.Command{
	Use:         "active [location]",
	Short:       "List the open calls of a location",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{noStorage: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		location, err := parseLocation(args[0])
		if err != nil {
			return err
		}
		client, err := newBackendClient()
		if err != nil {
			return err
		}

		date := callsDate
		if date == "" {
			date = backend.Date(time.Now())
		}
		calls, err := client.ListCalls(cmd.Context(), backend.ListCallsQuery{Location: location, Date: date, Type: "active"})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "GROUP\tTABLE\tTYPE\tSTARTED\tELAPSED\tCALLS")
		for _, section := range dashboard.GroupCalls(calls, location, time.Now()) {
			for _, item := range section.Calls {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					section.Title, item.TableName, item.Type, item.StartHour, item.ElapsedText, item.CallCount)
			}
		}
		return w.Flush()
	},
}

var callsCloseCmd = &cobra.Command{
	Use:         "close [location] [table] [type]",
	Short:       "Close an open call as staff",
	Args:        cobra.ExactArgs(3),
	Annotations: map[string]string{noStorage: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		location, err := parseLocation(args[0])
		if err != nil {
			return err
		}
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		t := backend.CallType(strings.ToUpper(args[2]))
		if err := dashboard.CloseCall(cmd.Context(), client, location, args[1], t, time.Now()); err != nil {
			return err
		}
		fmt.Printf("Closed %s at table %s.\n", t, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callsCmd)
	callsCmd.AddCommand(callsActiveCmd, callsCloseCmd)
	callsActiveCmd.Flags().StringVar(&callsDate, "date", "", "day to list, YYYY-MM-DD (default today)")
}
