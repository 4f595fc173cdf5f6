package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/records"
	"github.com/totegamma/memorial/retry"
)

// collectionSpec describes how the generic list/get/add/delete commands handle
// one collection.
type collectionSpec[T records.Record[T]] struct {
	name     string
	short    string
	addFlags func(cmd *cobra.Command)
	draft    func(cmd *cobra.Command) (T, *records.Attachment, func(), error)
	line     func(T) string
}

func newCollectionCommand[T records.Record[T]](opts *RootOptions, spec collectionSpec[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   spec.name,
		Short: spec.short,
	}

	open := func() (*records.Client[T], error) {
		c, err := opts.client()
		if err != nil {
			return nil, err
		}
		return records.New[T](spec.name, c, c,
			records.WithObjectStore(c),
			records.WithRetryPolicy(retry.DefaultPolicy()),
		), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List " + spec.name + ", newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := open()
			if err != nil {
				return err
			}
			items, err := rc.List(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), items, func(w io.Writer) {
				for _, item := range items {
					fmt.Fprintln(w, spec.line(item))
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one of the " + spec.name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := open()
			if err != nil {
				return err
			}
			item, err := rc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), item, func(w io.Writer) {
				fmt.Fprintln(w, spec.line(item))
			})
		},
	})

	add := &cobra.Command{
		Use:   "add",
		Short: "Add to " + spec.name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := open()
			if err != nil {
				return err
			}
			draft, media, done, err := spec.draft(cmd)
			if err != nil {
				return err
			}
			defer done()

			created, err := rc.Add(cmd.Context(), draft, media)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), created, func(w io.Writer) {
				fmt.Fprintln(w, spec.line(created))
			})
		},
	}
	spec.addFlags(add)
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your " + spec.name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := open()
			if err != nil {
				return err
			}
			// ownership is checked against the loaded view
			if _, err := rc.List(cmd.Context()); err != nil {
				return err
			}
			if err := rc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func stamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func NewMemoriesCommand(opts *RootOptions) *cobra.Command {
	var message, mediaPath string

	return newCollectionCommand(opts, collectionSpec[memorial.Memory]{
		name:  memorial.CollectionMemories,
		short: "Browse and share memories",
		addFlags: func(cmd *cobra.Command) {
			cmd.Flags().StringVarP(&message, "message", "m", "", "memory text")
			cmd.Flags().StringVar(&mediaPath, "media", "", "photo or video to attach")
			_ = cmd.MarkFlagRequired("message")
		},
		draft: func(cmd *cobra.Command) (memorial.Memory, *records.Attachment, func(), error) {
			draft := memorial.Memory{Message: message, MediaType: memorial.MediaNone}
			if mediaPath == "" {
				return draft, nil, func() {}, nil
			}
			return attach(draft, mediaPath)
		},
		line: func(m memorial.Memory) string {
			line := fmt.Sprintf("%s  %s  %s: %s", m.ID, stamp(m.CreatedAt), m.Name, m.Message)
			if m.MediaType != memorial.MediaNone {
				line += fmt.Sprintf(" [%s %s]", m.MediaType, m.MediaURL)
			}
			return line
		},
	})
}

func attach(draft memorial.Memory, path string) (memorial.Memory, *records.Attachment, func(), error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	kind := memorial.MediaTypeOf(contentType)
	if kind == memorial.MediaNone {
		return draft, nil, nil, fmt.Errorf("%s is neither an image nor a video", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return draft, nil, nil, err
	}

	draft.MediaType = kind
	return draft, &records.Attachment{ContentType: contentType, Body: f}, func() { f.Close() }, nil
}

func NewCondolencesCommand(opts *RootOptions) *cobra.Command {
	var text, relation string

	return newCollectionCommand(opts, collectionSpec[memorial.Condolence]{
		name:  memorial.CollectionCondolences,
		short: "Browse and leave condolences",
		addFlags: func(cmd *cobra.Command) {
			cmd.Flags().StringVarP(&text, "text", "t", "", "condolence message")
			cmd.Flags().StringVar(&relation, "relation", "", "your relation to the deceased")
			_ = cmd.MarkFlagRequired("text")
		},
		draft: func(cmd *cobra.Command) (memorial.Condolence, *records.Attachment, func(), error) {
			return memorial.Condolence{Text: text, Relation: relation}, nil, func() {}, nil
		},
		line: func(c memorial.Condolence) string {
			who := c.UserName
			if c.Relation != "" {
				who += " (" + c.Relation + ")"
			}
			return fmt.Sprintf("%s  %s  %s: %s", c.ID, stamp(c.CreatedAt), who, c.Text)
		},
	})
}
