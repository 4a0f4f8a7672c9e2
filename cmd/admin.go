package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"table-call/internal/jwt"
	"table-call/internal/utils"
)

var adminLocations []int

var adminCmd = &cobra.Command{
	Use:         "admin",
	Short:       "Manage staff access",
	Annotations: map[string]string{noStorage: ""},
}

var adminTokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Issue a staff token for the admin pages",
	Long: `Issue a signed staff token. Without --location the token covers every
location. Open /admin/active-calls/<location>?token=<token> once to store it
in the browser.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{noStorage: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := jwt.NewSigner(cfg.Secret, cfg.AdminTokenTTL)
		if err != nil {
			return err
		}
		token, err := signer.Issue(args[0], adminLocations)
		if err != nil {
			return err
		}
		fmt.Println(token)

		if len(adminLocations) > 0 {
			fmt.Printf("%s?token=%s\n", utils.JoinURL(cfg.BaseURL, fmt.Sprintf("admin/active-calls/%d", adminLocations[0])), token)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminTokenCmd)
	adminTokenCmd.Flags().IntSliceVar(&adminLocations, "location", nil, "location ids the token is limited to")
}
