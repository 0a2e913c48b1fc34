package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"activityplanner/internal/channel"
	"activityplanner/internal/config"
	"activityplanner/internal/tool"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the planner tools and their arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tARGUMENTS\tDESCRIPTION")
			for _, d := range tool.Catalogue() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, strings.Join(d.Required, ","), d.Description)
			}
			return w.Flush()
		},
	}
}

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [key=value...]",
		Short: "Invoke one tool and print its result",
		Example: `  planner call get_weather_data city="Richmond VA"
  planner call store_user_preferences preferences="hiking, museums"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, ok := channel.NewDispatcher(a.invoker, nil).Call(ctx, args[0], toolArgs)
			if !ok {
				return fmt.Errorf("unknown tool: %s", args[0])
			}
			if !res.OK() {
				return errors.New(res.Text)
			}
			fmt.Println(res.Text)
			return nil
		},
	}
}

func parseKeyValues(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the memory store",
	}

	var actor, session string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored turns for an actor/session, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Capabilities.HasMemory() {
				return errors.New("Memory capability not enabled (set MEMORY_ID)")
			}
			if actor == "" {
				actor = cfg.Identity.ActorID
			}
			if session == "" {
				session = cfg.Identity.SessionID
			}

			ctx := context.Background()
			store, err := openMemory(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			turns, err := store.ListEvents(ctx, actor, session, limit)
			if err != nil {
				return err
			}
			if len(turns) == 0 {
				fmt.Println("no events")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tINPUT\tRESPONSE")
			for _, t := range turns {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.CreatedAt.Format(time.RFC3339), oneLine(t.UserInput, 60), oneLine(t.AgentResponse, 60))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&actor, "actor", "", "actor id (default: identity.actorId)")
	list.Flags().StringVar(&session, "session", "", "session id (default: identity.sessionId)")
	list.Flags().IntVarP(&limit, "max", "n", 50, "maximum events to list")
	cmd.AddCommand(list)
	return cmd
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file + environment), secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print one config value by dotted key, or list every key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg = config.Sanitize(cfg)
			if len(args) == 0 {
				leaves := config.ListPaths(cfg)
				for _, p := range config.SortedPaths(cfg) {
					fmt.Printf("%s = %v\n", p, leaves[p])
				}
				return nil
			}
			v, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.ExpandPath(resolveConfigPath()))
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
