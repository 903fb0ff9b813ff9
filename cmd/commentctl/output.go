package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"recipeshare/internal/model"
	"recipeshare/internal/panel"
)

const maxContentWidth = 60

// outputFormat is --format, else a table on a terminal and JSON otherwise.
func outputFormat(cmd *cli.Command) (string, error) {
	format := strings.ToLower(strings.TrimSpace(cmd.Root().String("format")))
	switch format {
	case "":
		if isatty.IsTerminal(os.Stdout.Fd()) {
			return "table", nil
		}
		return "json", nil
	case "json", "table":
		return format, nil
	}
	return "", fmt.Errorf("unsupported format %q", format)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printView(cmd *cli.Command, v panel.View) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	if format == "json" {
		return printJSON(w, v)
	}

	fmt.Fprintf(w, "%d comments on %s (sort=%s)\n", v.Total, v.ItemID, v.Sort)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tLIKES\tREPLIES\tCREATED\tCONTENT")
	for _, c := range v.Comments {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			c.ID, c.AuthorName, c.LikeCount, c.ReplyCount, formatTime(c.CreatedAt), truncate(c.Content))
		for _, r := range c.Replies {
			fmt.Fprintf(tw, "  %s\t%s\t%d\t\t%s\t%s\n",
				r.ID, r.AuthorName, r.LikeCount, formatTime(r.CreatedAt), truncate(r.Content))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if v.HasMore {
		fmt.Fprintln(w, "more comments available (use --pages)")
	}
	return nil
}

func printComment(cmd *cli.Command, c model.Comment) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	if format == "json" {
		return printJSON(w, c)
	}
	fmt.Fprintf(w, "%s\t%s\n", c.ID, truncate(c.Content))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// truncate shortens s to one line of at most maxContentWidth runes.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxContentWidth {
		return s
	}
	return string(r[:maxContentWidth-3]) + "..."
}
