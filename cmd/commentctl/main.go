// Command commentctl browses and edits recipe comments from the terminal. Each
// command drives a comment panel against the configured document store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"recipeshare/internal/model"
	"recipeshare/internal/panel"
)

// Version can be set at build time with -ldflags="-X main.Version=X.Y.Z"
var Version = "dev"

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithOutput(args, os.Stdout)
}

func runWithOutput(args []string, w io.Writer) error {
	return buildApp(w).Run(context.Background(), args)
}

// asFlag is built per command; cli flags keep parse state.
func asFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "as",
		Usage:    "User ID to act as",
		Required: true,
	}
}

func buildApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "commentctl",
		Usage:   "Browse and manage recipe comments",
		Version: Version,
		Writer:  w,
		ExitErrHandler: func(ctx context.Context, cmd *cli.Command, err error) {
			// Don't call os.Exit, just let the error propagate
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Environment file to load (default $XDG_CONFIG_HOME/recipeshare/commentctl.env)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: json or table (default table on a terminal)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the comments of a recipe",
				ArgsUsage: "<item>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "sort",
						Usage: "popular or newest",
						Value: string(model.SortPopular),
					},
					&cli.IntFlag{
						Name:  "pages",
						Usage: "Number of pages to load",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "replies",
						Usage: "Expand the replies of every comment",
					},
					&cli.StringFlag{
						Name:  "as",
						Usage: "User ID to view as",
					},
				},
				Action: runList,
			},
			{
				Name:      "add",
				Usage:     "Comment on a recipe",
				ArgsUsage: "<item> <text>",
				Flags:     []cli.Flag{asFlag()},
				Action:    runAdd,
			},
			{
				Name:      "reply",
				Usage:     "Reply to a comment",
				ArgsUsage: "<item> <comment> <text>",
				Flags:     []cli.Flag{asFlag()},
				Action:    runReply,
			},
			{
				Name:      "delete",
				Usage:     "Delete a comment with its replies, or a single reply",
				ArgsUsage: "<item> <comment>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{
						Name:  "reply",
						Usage: "Delete only this reply of the comment",
					},
				},
				Action: runDelete,
			},
		},
	}
}

func runList(ctx context.Context, cmd *cli.Command) error {
	itemID := cmd.Args().First()
	if itemID == "" {
		return fmt.Errorf("usage: commentctl list <item>")
	}
	sort, err := model.ParseSortMode(cmd.String("sort"))
	if err != nil {
		return err
	}

	return withPanel(ctx, cmd, itemID, cmd.String("as"), sort, func(p *panel.Panel) error {
		for i := 1; i < cmd.Int("pages") && p.View().HasMore; i++ {
			if err := p.LoadMore(ctx); err != nil {
				return err
			}
		}
		if cmd.Bool("replies") {
			for _, c := range p.View().Comments {
				if c.ReplyCount == 0 {
					continue
				}
				if _, err := p.ToggleReplies(ctx, c.ID); err != nil {
					return err
				}
			}
		}
		return printView(cmd, p.View())
	})
}

func runAdd(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("usage: commentctl add --as <user> <item> <text>")
	}
	itemID := cmd.Args().First()
	text := strings.Join(cmd.Args().Slice()[1:], " ")

	return withPanel(ctx, cmd, itemID, cmd.String("as"), model.SortNewest, func(p *panel.Panel) error {
		c, err := p.CreateComment(ctx, text)
		if err != nil {
			return err
		}
		return printComment(cmd, c)
	})
}

func runReply(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 3 {
		return fmt.Errorf("usage: commentctl reply --as <user> <item> <comment> <text>")
	}
	args := cmd.Args().Slice()
	itemID, commentID := args[0], args[1]
	text := strings.Join(args[2:], " ")

	return withPanel(ctx, cmd, itemID, cmd.String("as"), model.SortNewest, func(p *panel.Panel) error {
		if err := loadUntil(ctx, p, commentID); err != nil {
			return err
		}
		r, err := p.CreateReply(ctx, commentID, text)
		if err != nil {
			return err
		}
		return printComment(cmd, r)
	})
}

func runDelete(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("usage: commentctl delete --as <user> [--reply <id>] <item> <comment>")
	}
	itemID, commentID := cmd.Args().Get(0), cmd.Args().Get(1)
	replyID := cmd.String("reply")

	return withPanel(ctx, cmd, itemID, cmd.String("as"), model.SortNewest, func(p *panel.Panel) error {
		if err := loadUntil(ctx, p, commentID); err != nil {
			return err
		}
		if replyID == "" {
			if err := p.DeleteComment(ctx, commentID); err != nil {
				return err
			}
		} else {
			if _, err := p.ToggleReplies(ctx, commentID); err != nil {
				return err
			}
			if err := p.DeleteReply(ctx, commentID, replyID); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.Root().Writer, "deleted")
		return nil
	})
}

// loadUntil pages through the panel until commentID is listed.
func loadUntil(ctx context.Context, p *panel.Panel, commentID string) error {
	for {
		v := p.View()
		for _, c := range v.Comments {
			if c.ID == commentID {
				return nil
			}
		}
		if !v.HasMore {
			return fmt.Errorf("comment %s: %w", commentID, model.ErrCommentNotFound)
		}
		if err := p.LoadMore(ctx); err != nil {
			return err
		}
	}
}

// withPanel opens a panel on itemID for the duration of fn.
func withPanel(ctx context.Context, cmd *cli.Command, itemID, userID string, sort model.SortMode, fn func(p *panel.Panel) error) error {
	env, err := openEnv(ctx, cmd.Root().String("env-file"))
	if err != nil {
		return err
	}
	defer env.Close()

	p := panel.New(env.deps, env.cfg)
	defer p.Close()
	if err := p.Open(ctx, itemID, userID, sort); err != nil {
		return err
	}
	return fn(p)
}
