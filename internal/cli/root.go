package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/totegamma/memorial/client"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Endpoint string
	Token    string
	Format   string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "memorialctl",
		Short: "Manage memories and condolences on a memorial site",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", envOr("MEMORIAL_ENDPOINT", "http://localhost:8000"), "memorial server endpoint")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("MEMORIAL_TOKEN"), "session token")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMemoriesCommand(opts))
	cmd.AddCommand(NewCondolencesCommand(opts))
	cmd.AddCommand(NewAuthCommand(opts))

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *RootOptions) client() (*client.Client, error) {
	return client.New(o.Endpoint, o.Token)
}

// print writes v as indented JSON, or through text in text mode.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" || text == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
