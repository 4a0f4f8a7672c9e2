package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"table-call/internal/storage"
	"table-call/internal/tablecode"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage café locations",
	Long:  `Create, list, import and delete the locations the QR roster is generated from.`,
}

var locationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		locations, err := provider.ListLocations(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing locations: %w", err)
		}

		if len(locations) == 0 {
			fmt.Println("No locations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTABLES\tCREATED AT")
		for _, l := range locations {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", l.ID, l.Name, l.TableCount, l.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func parseLocationArgs(args []string) (storage.Location, error) {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return storage.Location{}, fmt.Errorf("invalid location id %q", args[0])
	}
	tables, err := strconv.Atoi(args[2])
	if err != nil || tables <= 0 {
		return storage.Location{}, fmt.Errorf("invalid table count %q", args[2])
	}
	return storage.Location{ID: id, Name: args[1], TableCount: tables, CreatedAt: time.Now()}, nil
}

var locationCreateCmd = &cobra.Command{
	Use:   "create [id] [name] [table-count]",
	Short: "Create a location, or revive a deleted one",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := parseLocationArgs(args)
		if err != nil {
			return err
		}
		if err := provider.CreateLocation(cmd.Context(), loc); err != nil {
			return fmt.Errorf("creating location: %w", err)
		}
		fmt.Printf("Location '%s' created with %d tables.\n", loc.Name, loc.TableCount)
		return nil
	},
}

var locationUpdateCmd = &cobra.Command{
	Use:   "update [id] [name] [table-count]",
	Short: "Rename a location or change its table count",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := parseLocationArgs(args)
		if err != nil {
			return err
		}
		if err := provider.UpdateLocation(cmd.Context(), loc); err != nil {
			return fmt.Errorf("updating location: %w", err)
		}
		fmt.Printf("Location %d updated.\n", loc.ID)
		return nil
	},
}

var locationDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a location by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID: %w", err)
		}
		if err := provider.DeleteLocation(cmd.Context(), id); err != nil {
			return fmt.Errorf("deleting location: %w", err)
		}
		fmt.Printf("Location ID %d deleted successfully.\n", id)
		return nil
	},
}

type rosterFile struct {
	Locations []tablecode.Location `yaml:"locations"`
}

// readRoster parses a roster file:
//
//	locations:
//	  - id: 1
//	    name: Bahçeli
//	    table_count: 16
func readRoster(r io.Reader) ([]tablecode.Location, error) {
	var f rosterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	seen := make(map[int]bool)
	for _, l := range f.Locations {
		if l.ID <= 0 || l.Name == "" || l.TableCount <= 0 {
			return nil, fmt.Errorf("%w: %+v", storage.ErrInvalidLocation, l)
		}
		if seen[l.ID] {
			return nil, fmt.Errorf("duplicate location id %d", l.ID)
		}
		seen[l.ID] = true
	}
	return f.Locations, nil
}

func importRoster(ctx context.Context, p storage.Provider, roster []tablecode.Location) error {
	now := time.Now()
	for _, l := range roster {
		loc := storage.Location{ID: l.ID, Name: l.Name, TableCount: l.TableCount, CreatedAt: now}
		if err := p.CreateLocation(ctx, loc); err != nil {
			return fmt.Errorf("importing location %d: %w", l.ID, err)
		}
	}
	return nil
}

var locationImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Create or update locations from a YAML roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		roster, err := readRoster(f)
		if err != nil {
			return err
		}
		if err := importRoster(cmd.Context(), provider, roster); err != nil {
			return err
		}
		fmt.Printf("Imported %d locations.\n", len(roster))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locationCmd)
	locationCmd.AddCommand(locationListCmd)
	locationCmd.AddCommand(locationCreateCmd)
	locationCmd.AddCommand(locationUpdateCmd)
	locationCmd.AddCommand(locationDeleteCmd)
	locationCmd.AddCommand(locationImportCmd)
}
