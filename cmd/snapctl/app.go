package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/GriffinCanCode/sidesnap/internal/client"
	"github.com/GriffinCanCode/sidesnap/internal/domain/snapshot"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sidesnap/internal/shared/id"
)

type clientKey struct{}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            "snapctl",
		Usage:           "manage snapshots stored on a sidesnap server",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Value: "http://localhost:3001",
				Sources: cli.EnvVars("SIDESNAP_URL"), Usage: "server base `URL`"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "per request timeout"},
			&cli.IntFlag{Name: "retries", Value: 3, Usage: "retries for transient failures"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of text"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log retries and breaker changes"},
		},
		Before: connect,
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "upload snapshot files",
				ArgsUsage: "FILE...",
				Action:    uploadCmd,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "list stored snapshots, newest first",
				Action:  listCmd,
			},
			{
				Name:      "show",
				Usage:     "print the panel tree of a snapshot",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "raw", Usage: "print the stored document"},
				},
				Action: showCmd,
			},
			{
				Name:      "rm",
				Usage:     "delete snapshots",
				ArgsUsage: "ID...",
				Action:    rmCmd,
			},
			{
				Name:      "rm-panel",
				Usage:     "delete every group of a panel",
				ArgsUsage: "ID PANEL",
				Action:    rmPanelCmd,
			},
			{
				Name:      "rm-node",
				Usage:     "delete one tab, promoting its children unless --subtree is given",
				ArgsUsage: "ID PANEL GROUP INDEX",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "subtree", Usage: "delete the tab's descendants too"},
					&cli.IntFlag{Name: "lvl", Value: -1, Usage: "expected level of the tab; stale addresses are refused"},
				},
				Action: rmNodeCmd,
			},
		},
	}
}

// connect builds the API client and starts one trace for the invocation
func connect(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	opts := client.DefaultOptions(strings.TrimRight(cmd.String("server"), "/"))
	opts.Timeout = cmd.Duration("timeout")
	opts.RetryMax = cmd.Int("retries")
	if cmd.Bool("verbose") {
		logger, err := logging.New(logging.Config{Level: "debug", Development: true, Output: cmd.Root().ErrWriter})
		if err != nil {
			return ctx, err
		}
		opts.Logger = logger.Logger
	}

	ctx = tracing.WithIDs(ctx, id.NewTraceID(), "")
	return context.WithValue(ctx, clientKey{}, client.New(opts)), nil
}

func apiFrom(ctx context.Context) *client.Client {
	return ctx.Value(clientKey{}).(*client.Client)
}

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(out(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func needArgs(cmd *cli.Command, n int, usage string) error {
	if cmd.NArg() < n {
		return fmt.Errorf("usage: %s %s", cmd.FullName(), usage)
	}
	return nil
}

func uploadCmd(ctx context.Context, cmd *cli.Command) error {
	if err := needArgs(cmd, 1, "FILE..."); err != nil {
		return err
	}

	var (
		errs  error
		metas []*snapshot.Meta
	)
	for _, path := range cmd.Args().Slice() {
		meta, err := apiFrom(ctx).Upload(ctx, path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		metas = append(metas, meta)
		if !cmd.Root().Bool("json") {
			fmt.Fprintf(out(cmd), "%s\t%s\n", meta.ID, path)
		}
	}
	if cmd.Root().Bool("json") {
		if err := printJSON(cmd, metas); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func listCmd(ctx context.Context, cmd *cli.Command) error {
	list, err := apiFrom(ctx).List(ctx)
	if err != nil {
		return err
	}
	if cmd.Root().Bool("json") {
		return printJSON(cmd, list)
	}

	tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCAPTURED\tSTORED\tTITLE")
	for _, m := range list {
		captured := time.UnixMilli(m.Time).UTC().Format(time.DateTime)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, captured, m.CreatedAt, m.PreviewTitle)
	}
	return tw.Flush()
}

func showCmd(ctx context.Context, cmd *cli.Command) error {
	if err := needArgs(cmd, 1, "ID"); err != nil {
		return err
	}
	snapID := cmd.Args().First()

	if cmd.Bool("raw") {
		raw, err := apiFrom(ctx).Raw(ctx, snapID)
		if err != nil {
			return err
		}
		return printJSON(cmd, raw)
	}

	view, err := apiFrom(ctx).Parsed(ctx, snapID)
	if err != nil {
		return err
	}
	if cmd.Root().Bool("json") {
		return printJSON(cmd, view)
	}
	return printView(out(cmd), view)
}

// printView writes panels, groups and indented tab titles. Each tab line
// carries the group and index rm-node expects.
func printView(w io.Writer, view *snapshot.View) error {
	for _, p := range view.Panels {
		name := p.ID
		if meta, ok := p.Meta.(map[string]any); ok {
			if n, ok := meta["name"].(string); ok && n != "" {
				name = fmt.Sprintf("%s (%s)", n, p.ID)
			}
		}
		if _, err := fmt.Fprintf(w, "%s\n", name); err != nil {
			return err
		}
		for gi, g := range p.Groups {
			fmt.Fprintf(w, "  group %d: %d tabs\n", gi, len(g.Raw))
			snapshot.Walk(g.Tree, func(n *snapshot.TreeNode, depth int) bool {
				tab := snapshot.TabOf(n.Tab)
				label := tab.Title
				if label == "" {
					label = tab.URL
				}
				fmt.Fprintf(w, "    %s[%d:%d] %s\n", strings.Repeat("  ", depth), gi, n.IndexInGroup, label)
				return true
			})
		}
	}
	return nil
}

func rmCmd(ctx context.Context, cmd *cli.Command) error {
	if err := needArgs(cmd, 1, "ID..."); err != nil {
		return err
	}
	var errs error
	for _, snapID := range cmd.Args().Slice() {
		if err := apiFrom(ctx).DeleteSnapshot(ctx, snapID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", snapID, err))
			continue
		}
		fmt.Fprintf(out(cmd), "deleted %s\n", snapID)
	}
	return errs
}

func rmPanelCmd(ctx context.Context, cmd *cli.Command) error {
	if err := needArgs(cmd, 2, "ID PANEL"); err != nil {
		return err
	}
	snapID, panelID := cmd.Args().Get(0), cmd.Args().Get(1)

	deleted, err := apiFrom(ctx).DeletePanel(ctx, snapID, panelID)
	if err != nil {
		return err
	}
	if cmd.Root().Bool("json") {
		return printJSON(cmd, map[string]bool{"deleted_snapshot": deleted})
	}
	if deleted {
		fmt.Fprintf(out(cmd), "deleted panel %s; it was the last one, snapshot %s removed\n", panelID, snapID)
	} else {
		fmt.Fprintf(out(cmd), "deleted panel %s from %s\n", panelID, snapID)
	}
	return nil
}

func rmNodeCmd(ctx context.Context, cmd *cli.Command) error {
	if err := needArgs(cmd, 4, "ID PANEL GROUP INDEX"); err != nil {
		return err
	}
	args := cmd.Args()
	group, err := strconv.Atoi(args.Get(2))
	if err != nil {
		return fmt.Errorf("invalid group index %q: %w", args.Get(2), err)
	}
	index, err := strconv.Atoi(args.Get(3))
	if err != nil {
		return fmt.Errorf("invalid tab index %q: %w", args.Get(3), err)
	}

	addr := snapshot.NodeAddress{PanelID: args.Get(1), GroupIndex: group, IndexInGroup: index}
	if lvl := cmd.Int("lvl"); lvl >= 0 {
		addr.Level = &lvl
	}

	view, err := apiFrom(ctx).DeleteNode(ctx, args.Get(0), addr, cmd.Bool("subtree"))
	if err != nil {
		return err
	}
	if cmd.Root().Bool("json") {
		return printJSON(cmd, view)
	}
	return printView(out(cmd), view)
}
