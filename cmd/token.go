package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"table-call/internal/tablecode"
	"table-call/internal/utils"
)

var tokenCmd = &cobra.Command{
	Use:         "token",
	Short:       "Encode and decode table tokens",
	Annotations: map[string]string{noStorage: ""},
}

var tokenEncodeCmd = &cobra.Command{
	Use:         "encode [location] [table]",
	Short:       "Print the token and URL of a table",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{noStorage: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := tablecode.NewCodec(cfg.TableSecret)
		if err != nil {
			return err
		}
		location, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: %q", tablecode.ErrInvalidLocation, args[0])
		}
		token, err := codec.Encode(location, args[1])
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Println(utils.JoinURL(cfg.BaseURL, token))
		return nil
	},
}

var tokenDecodeCmd = &cobra.Command{
	Use:         "decode [token]",
	Short:       "Decode a table token",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{noStorage: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := tablecode.NewCodec(cfg.TableSecret)
		if err != nil {
			return err
		}
		table, ok := codec.Decode(args[0])
		if !ok {
			return fmt.Errorf("not a valid table token: %q", args[0])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenEncodeCmd, tokenDecodeCmd)
}
