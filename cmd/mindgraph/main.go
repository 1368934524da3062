// Command mindgraph is an operational CLI for mind-map backends: print
// the tree, add and remove nodes, watch the realtime channel, and
// manage local snapshots.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	mindgraph "github.com/mindflow-ai/mindgraph"
	"github.com/mindflow-ai/mindgraph/config"
	"github.com/mindflow-ai/mindgraph/graph"
	"github.com/mindflow-ai/mindgraph/presence"
	"github.com/mindflow-ai/mindgraph/realtime"
	"github.com/mindflow-ai/mindgraph/snapshot"
	"github.com/mindflow-ai/mindgraph/view"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	v := viper.New()
	v.SetEnvPrefix("MINDGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "mindgraph",
		Short:         "Collaborative mind-map graph editor tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			otel.SetTracerProvider(sdktrace.NewTracerProvider())

			// MINDGRAPH_CONFIG picks the config file when the flag is absent.
			if configPath == "" {
				configPath = v.GetString("config")
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to mindgraph.yaml (default: search upward from cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newTreeCmd(&configPath),
		newAddCmd(&configPath),
		newRmCmd(&configPath),
		newWatchCmd(&configPath),
		newWhoCmd(&configPath),
		newSaveCmd(&configPath),
	)

	return rootCmd
}

// loadConfig resolves the configuration: explicit path, upward search,
// or built-in defaults, in that order.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if cfg, err := config.LoadFromDir(cwd); err == nil {
		return cfg, nil
	}
	return config.Default(), nil
}

// buildChannel instantiates the configured realtime transport.
func buildChannel(ctx context.Context, cfg *config.Config) (realtime.Channel, error) {
	rt := cfg.Realtime
	switch rt.GetTransport() {
	case config.TransportRedis:
		return realtime.NewRedisChannel(realtime.RedisOptions{
			URL:     rt.RedisURL,
			Channel: rt.RedisChannel,
		})
	case config.TransportSocketIO:
		return realtime.NewSocketIOChannel(ctx, realtime.SocketIOOptions{
			URL:       rt.SocketURL,
			Namespace: rt.Namespace,
		})
	default:
		return realtime.NewMemoryChannel(), nil
	}
}

// newPresenceClient builds the roster client. Presence is opt-in: no
// endpoints, no client.
func newPresenceClient(cfg *config.Config) (*presence.Client, error) {
	if cfg.Presence == nil || len(cfg.Presence.Endpoints) == 0 {
		return nil, fmt.Errorf("presence endpoints not configured (presence.endpoints or MINDGRAPH_ETCD_ENDPOINTS)")
	}
	return presence.NewClient(presence.Config{
		Endpoints: cfg.Presence.Endpoints,
		TTL:       int(cfg.Presence.GetTTL() / time.Second),
	})
}

// editorName resolves the announced display name: config first, the OS
// hostname otherwise.
func editorName(cfg *config.Config) string {
	if cfg.Presence != nil && cfg.Presence.Editor != "" {
		return cfg.Presence.Editor
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// buildEditor assembles an editor from the config and hydrates it from
// the backend (or snapshot fallback).
func buildEditor(ctx context.Context, cfg *config.Config, withChannel bool) (*mindgraph.Editor, error) {
	opts := []mindgraph.Option{
		mindgraph.WithConfig(cfg),
	}

	if cfg.Snapshot != nil && cfg.Snapshot.Path != "" {
		snap, err := snapshot.Open(cfg.Snapshot.Path, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("opening snapshot: %w", err)
		}
		opts = append(opts, mindgraph.WithSnapshotStore(snap))
	}

	if withChannel && cfg.Realtime != nil && cfg.Realtime.GetTransport() != config.TransportMemory {
		ch, err := buildChannel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting realtime channel: %w", err)
		}
		opts = append(opts, mindgraph.WithChannel(ch))
	}

	ed, err := mindgraph.New(opts...)
	if err != nil {
		return nil, err
	}

	if err := ed.Start(); err != nil {
		return nil, err
	}

	if _, err := ed.Load(ctx); err != nil {
		slog.Warn("load failed, starting from seed graph", "error", err)
	}

	return ed, nil
}

func newTreeCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the mind map as an indented tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ed, err := buildEditor(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer ed.Close(ctx)

			store := ed.Store()
			if all {
				printSubtree(cmd, store, graph.RootID, 0)
				return nil
			}
			printProjection(cmd, ed.Visible())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include collapsed subtrees")
	return cmd
}

func printProjection(cmd *cobra.Command, p view.Projection) {
	depth := make(map[string]int, len(p.Nodes))
	for _, e := range p.Edges {
		depth[e.Target] = depth[e.Source] + 1
	}
	for _, n := range p.Nodes {
		cmd.Printf("%s%s\n", strings.Repeat("  ", depth[n.ID]), nodeLine(n))
	}
}

func printSubtree(cmd *cobra.Command, store *graph.Store, id string, depth int) {
	n, err := store.Get(id)
	if err != nil {
		return
	}
	cmd.Printf("%s%s\n", strings.Repeat("  ", depth), nodeLine(n))
	children, err := store.Children(id)
	if err != nil {
		return
	}
	for _, child := range children {
		printSubtree(cmd, store, child.ID, depth+1)
	}
}

func nodeLine(n *graph.Node) string {
	line := fmt.Sprintf("%s [%s] (%s)", n.Data.Label, n.NodeType, n.ID)
	if !n.Expanded {
		line += " [collapsed]"
	}
	return line
}

func newAddCmd(configPath *string) *cobra.Command {
	var (
		parentID string
		nodeType string
		label    string
		comment  string
		statusV  string
		tasks    []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a child node and persist it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ed, err := buildEditor(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer ed.Close(ctx)

			data := graph.Data{Label: label, Comment: comment, Status: statusV}
			for _, text := range tasks {
				data.Tasks = append(data.Tasks, graph.TaskItem{Text: text})
			}

			n, err := ed.CreateChild(parentID, graph.NodeType(nodeType), data)
			if err != nil {
				return err
			}
			ed.Flush()

			cmd.Printf("created %s under %s\n", n.ID, parentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", graph.RootID, "Parent node id")
	cmd.Flags().StringVar(&nodeType, "type", "comment", "Node type (project, tasks, status, comment, task)")
	cmd.Flags().StringVar(&label, "label", "", "Node label")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment text (comment nodes)")
	cmd.Flags().StringVar(&statusV, "status", "", "Status value (status nodes)")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "Task text, repeatable (tasks nodes)")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func newRmCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <node-id>",
		Short: "Delete a node and its whole subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ed, err := buildEditor(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer ed.Close(ctx)

			removed, err := ed.DeleteNode(args[0])
			if err != nil {
				return err
			}
			ed.Flush()

			cmd.Printf("removed %d node(s): %s\n", len(removed), strings.Join(removed, ", "))
			return nil
		},
	}
	return cmd
}

func newWatchCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream realtime graph-change events to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Realtime.GetTransport() == config.TransportMemory {
				return fmt.Errorf("watch needs a redis or socketio transport in the config")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Announce ourselves in the roster while watching, so other
			// editors running `mindgraph who` can see us.
			if cfg.Presence != nil && len(cfg.Presence.Endpoints) > 0 {
				roster, err := newPresenceClient(cfg)
				if err != nil {
					return err
				}
				defer roster.Close()

				if err := roster.Announce(ctx, presence.Editor{
					ClientID: uuid.NewString(),
					Name:     editorName(cfg),
				}); err != nil {
					return err
				}
				defer roster.Leave(context.Background())
			}

			ch, err := buildChannel(ctx, cfg)
			if err != nil {
				return err
			}
			defer ch.Close()

			events, err := ch.Subscribe(ctx)
			if err != nil {
				return err
			}

			cmd.Println("watching... (ctrl-c to stop)")
			for evt := range events {
				switch evt.Type {
				case realtime.EventNodeDeleted:
					cmd.Printf("%s  %-12s %s\n", time.Now().Format(time.TimeOnly), evt.Type, strings.Join(evt.IDs, ", "))
				default:
					id := ""
					if evt.Node != nil {
						id = fmt.Sprintf("%s (%q)", evt.Node.ID, evt.Node.Data.Label)
					}
					cmd.Printf("%s  %-12s %s\n", time.Now().Format(time.TimeOnly), evt.Type, id)
				}
			}
			return nil
		},
	}
	return cmd
}

func newWhoCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "who",
		Short: "List editors currently announced on the map",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			roster, err := newPresenceClient(cfg)
			if err != nil {
				return err
			}
			defer roster.Close()

			editors, err := roster.Editors(cmd.Context())
			if err != nil {
				return err
			}
			if len(editors) == 0 {
				cmd.Println("nobody is editing")
				return nil
			}
			for _, ed := range editors {
				cmd.Printf("%-20s %s (joined %s)\n", ed.Name, ed.ClientID, ed.JoinedAt.Format(time.TimeOnly))
			}
			return nil
		},
	}
	return cmd
}

func newSaveCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write every node to the backend and refresh the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ed, err := buildEditor(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer ed.Close(ctx)

			if err := ed.SaveAll(ctx); err != nil {
				return err
			}
			cmd.Printf("saved %d node(s)\n", ed.Store().Len())
			return nil
		},
	}
	return cmd
}
