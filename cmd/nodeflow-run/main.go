// Nodeflow CLI — локальный запуск и проверка графов.
//
// Использование:
//
//	nodeflow-run run <graph.json> [--input JSON] [--quiet]
//	nodeflow-run validate <graph.json>
//
// run выполняет граф локально, без очередей и базы: события узлов
// печатаются в stderr построчно в JSON, итог запуска — в stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Nodeflow/internal/broker"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/sink"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "nodeflow-run",
		Short:         "Nodeflow CLI — run and validate workflow graphs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd(), newValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var inputJSON string
	var inputFile string
	var fileRoot string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run <graph.json>",
		Short: "Execute a graph locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			input, err := parseInput(inputJSON, inputFile)
			if err != nil {
				return err
			}

			registry := executor.NewDefaultRegistry(executor.Deps{
				FileRoot:     fileRoot,
				ModelAPIKey:  os.Getenv("OPENAI_API_KEY"),
				ModelBaseURL: os.Getenv("OPENAI_BASE_URL"),
				SMTPAddr:     os.Getenv("SMTP_ADDR"),
				SMTPFrom:     os.Getenv("SMTP_FROM"),
			})

			graph, err := engine.LoadGraph(args[0])
			if err != nil {
				return err
			}
			if err := engine.ValidateGraph(graph, registry); err != nil {
				return err
			}

			var sinks []sink.Sink
			if !quiet {
				sinks = append(sinks, sink.Func(func(_ context.Context, ev domain.RunEvent) error {
					line, err := json.Marshal(ev)
					if err != nil {
						return err
					}
					fmt.Fprintln(os.Stderr, string(line))
					return nil
				}))
			}

			b := broker.New(broker.Config{})
			defer b.Close()

			// Логи — в stderr, чтобы не мешать JSON результату в stdout
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			eng, err := engine.New(engine.Config{
				Registry: registry,
				Broker:   b,
				Sinks:    sinks,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			result, err := eng.Execute(ctx, &domain.RunRequest{
				RunID: uuid.New(),
				Graph: graph,
				Input: input,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if result.Status != domain.RunStatusSucceeded {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputJSON, "input", "", "Run input as inline JSON")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "Run input from a JSON file")
	cmd.Flags().StringVar(&fileRoot, "file-root", ".", "Root directory for file nodes")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress node event output")

	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph.json>",
		Short: "Check a graph definition without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := engine.LoadGraph(args[0])
			if err != nil {
				return err
			}
			registry := executor.NewDefaultRegistry(executor.Deps{})
			if err := engine.ValidateGraph(graph, registry); err != nil {
				return err
			}
			fmt.Printf("graph %q is valid: %d nodes, %d edges\n",
				graph.Name, len(graph.Nodes), len(graph.Edges))
			return nil
		},
	}
}

// parseInput читает вход запуска из флага --input или --input-file.
// Оба флага сразу — ошибка.
func parseInput(inline, path string) (any, error) {
	if inline != "" && path != "" {
		return nil, fmt.Errorf("--input and --input-file are mutually exclusive")
	}

	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		data = b
	default:
		return nil, nil
	}

	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse input JSON: %w", err)
	}
	return input, nil
}
