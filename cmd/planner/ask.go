package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"activityplanner/internal/agent"
	"activityplanner/internal/results"
	"activityplanner/internal/tool"
)

func askCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Run the planning agent on a query (default: " + agent.DefaultQuery + ")",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := results.NewStore(results.StoreConfig{
				Dir:    cfg.Agent.ResultsDir,
				Bucket: cfg.Agent.ResultsBucket,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			reg := tool.NewRegistry(logger)
			reg.RegisterPlanner(a.invoker)
			reg.Register(results.NewSaveTool(store))

			loop := agent.NewLoop(agent.LoopConfig{
				Provider:      a.llm,
				Tools:         reg,
				Logger:        logger,
				ResultsBucket: store.Bucket(),
				MaxIterations: cfg.Agent.MaxIterations,
			})

			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				query = cfg.Agent.DefaultQuery
			}
			res := loop.Run(ctx, query)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if res.Status != agent.StatusCompleted {
				return fmt.Errorf("agent: %s", res.Error)
			}
			fmt.Println(renderMarkdown(res.Result))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the {status, result|error} object instead of rendered text")
	return cmd
}

// renderMarkdown renders md for the terminal, or returns it unchanged when
// stdout is not a terminal.
func renderMarkdown(md string) string {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return md
	}
	width := 100
	if w, _, err := term.GetSize(fd); err == nil && w > 20 {
		width = w - 4
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
