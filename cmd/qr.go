package cmd

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"table-call/internal/email"
	"table-call/internal/storage"
	"table-call/internal/tablecode"
	"table-call/internal/utils"
)

var (
	qrLocation int
	qrURLsOnly bool
	qrEncoding string
	qrOutput   string
	qrTo       []string
	qrImages   bool
	qrDryRun   bool
)

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Generate the table QR roster",
}

// rosterEntries mints the QR entries of every stored location, narrowed to
// qrLocation when set.
func rosterEntries(ctx context.Context) ([]tablecode.Entry, error) {
	locations, err := provider.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	codec, err := tablecode.NewCodec(cfg.TableSecret)
	if err != nil {
		return nil, err
	}
	entries, err := codec.GenerateAll(cfg.BaseURL, storage.Roster(locations))
	if err != nil {
		return nil, err
	}
	if qrLocation > 0 {
		entries = tablecode.FilterLocation(entries, qrLocation)
	}
	return entries, nil
}

// output opens qrOutput, or stdout when it is empty or "-".
func output() (io.WriteCloser, error) {
	if qrOutput == "" || qrOutput == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(qrOutput)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

var qrListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the table URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := rosterEntries(cmd.Context())
		if err != nil {
			return err
		}
		if qrURLsOnly {
			if err := tablecode.WriteURLs(os.Stdout, entries); err != nil {
				return err
			}
			fmt.Println()
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LOCATION\tTABLE\tURL")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.LocationName, e.TableName, e.FullURL)
		}
		return w.Flush()
	},
}

var qrExportCmd = &cobra.Command{
	Use:       "export [csv|txt]",
	Short:     "Export the table URLs as CSV or text",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"csv", "txt"},
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := rosterEntries(cmd.Context())
		if err != nil {
			return err
		}
		out, err := output()
		if err != nil {
			return err
		}
		defer out.Close()

		enc := tablecode.Encoding(qrEncoding)
		if args[0] == "csv" {
			return tablecode.WriteCSV(out, entries, enc)
		}
		return tablecode.WriteText(out, entries, enc)
	},
}

var qrPNGCmd = &cobra.Command{
	Use:   "png [token | location/table]",
	Short: "Render one table QR code as PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := tablecode.NewCodec(cfg.TableSecret)
		if err != nil {
			return err
		}
		token, err := resolveToken(codec, args[0])
		if err != nil {
			return err
		}

		png, err := tablecode.QRCode(utils.JoinURL(cfg.BaseURL, token), cfg.QRImageSize)
		if err != nil {
			return err
		}
		out, err := output()
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = out.Write(png)
		return err
	},
}

// resolveToken accepts a token or a "location/table" pair.
func resolveToken(codec *tablecode.Codec, arg string) (string, error) {
	if location, name, ok := strings.Cut(arg, "/"); ok {
		t, err := tablecode.ParseLegacy(location, name)
		if err != nil {
			return "", err
		}
		return codec.Encode(t.Location, t.Name)
	}
	if _, ok := codec.Decode(arg); !ok {
		return "", fmt.Errorf("not a valid table token: %q", arg)
	}
	return arg, nil
}

var rosterMailTemplate = template.Must(template.New("roster").Parse(`<p>QR roster, {{len .}} tables.</p>
<table>
<tr><th>Location</th><th>Table</th><th>URL</th></tr>
{{range .}}<tr><td>{{.LocationName}}</td><td>{{.TableName}}</td><td>{{.FullURL}}</td></tr>
{{end}}</table>`))

// rosterMessage builds the mail sent to the print service: the list in the
// body, the CSV and text exports attached and, with images, one PNG per table.
func rosterMessage(entries []tablecode.Entry, to []string, images bool, qrSize int) (*email.Message, error) {
	var body bytes.Buffer
	if err := rosterMailTemplate.Execute(&body, entries); err != nil {
		return nil, err
	}

	var csvBuf, txtBuf bytes.Buffer
	if err := tablecode.WriteCSV(&csvBuf, entries, tablecode.UTF16LE); err != nil {
		return nil, err
	}
	if err := tablecode.WriteText(&txtBuf, entries, tablecode.UTF8); err != nil {
		return nil, err
	}

	msg := &email.Message{
		To:      to,
		Subject: fmt.Sprintf("Table QR codes (%d)", len(entries)),
		HTML:    body.String(),
		Attachments: []email.Attachment{
			{Name: "qr-list.csv", Data: csvBuf.Bytes()},
			{Name: "qr-list.txt", Data: txtBuf.Bytes()},
		},
	}
	if images {
		for _, e := range entries {
			png, err := tablecode.QRCode(e.FullURL, qrSize)
			if err != nil {
				return nil, err
			}
			name := fmt.Sprintf("%s-%s.png", e.LocationName, e.TableName)
			msg.Attachments = append(msg.Attachments, email.Attachment{Name: name, Data: png})
		}
	}
	return msg, nil
}

var qrSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Mail the roster exports to the QR print service",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := rosterEntries(cmd.Context())
		if err != nil {
			return err
		}
		msg, err := rosterMessage(entries, qrTo, qrImages, cfg.QRImageSize)
		if err != nil {
			return err
		}

		client := email.NewClient(cfg.Email)
		if qrDryRun {
			return client.WriteTo(os.Stdout, msg)
		}
		if err := client.Send(cmd.Context(), msg); err != nil {
			return err
		}
		recipients := msg.To
		if len(recipients) == 0 {
			recipients = cfg.Email.To
		}
		fmt.Printf("Sent %d tables to %s.\n", len(entries), strings.Join(recipients, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(qrCmd)
	qrCmd.AddCommand(qrListCmd, qrExportCmd, qrPNGCmd, qrSendCmd)

	qrCmd.PersistentFlags().IntVar(&qrLocation, "location", 0, "only this location id")
	qrListCmd.Flags().BoolVar(&qrURLsOnly, "urls-only", false, "print the bare URLs, one per line")
	qrExportCmd.Flags().StringVar(&qrEncoding, "encoding", string(tablecode.UTF8), "output encoding: utf-8 or utf-16le")
	qrExportCmd.Flags().StringVarP(&qrOutput, "output", "o", "", "output file (default stdout)")
	qrPNGCmd.Flags().StringVarP(&qrOutput, "output", "o", "", "output file (default stdout)")
	qrSendCmd.Flags().StringSliceVar(&qrTo, "to", nil, "recipients (default email.to)")
	qrSendCmd.Flags().BoolVar(&qrImages, "images", false, "attach one PNG per table")
	qrSendCmd.Flags().BoolVar(&qrDryRun, "dry-run", false, "print the message instead of sending it")
}
