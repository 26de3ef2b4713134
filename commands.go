package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/JulioPeixoto/veritas/features/scraping"
	"github.com/JulioPeixoto/veritas/features/store"
	"github.com/JulioPeixoto/veritas/internal/app"
	"github.com/JulioPeixoto/veritas/internal/config"
)

// withApp builds the full application for one-shot commands.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)
	ctx := cmd.Context()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	models, err := app.NewModels(ctx, cfg)
	if err != nil {
		return err
	}
	defer models.Close()

	a, err := app.New(cfg, deps, models)
	if err != nil {
		return err
	}
	defer a.Index.Close()
	return fn(a)
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>...",
		Short: "Extract, chunk and index local documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				bar := progressbar.NewOptions(len(args),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionSetDescription("Indexing"),
					progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
				)

				var failed int
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					res, err := a.Store.IndexDocument(cmd.Context(), store.Upload{Filename: filepath.Base(path), Data: data})
					_ = bar.Add(1)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks, %d caracteres\n",
						res.Filename, res.ChunksCreated, res.CharactersProcessed)
				}
				if failed == len(args) {
					return store.ErrAllFailed
				}
				return nil
			})
		},
	}
}

func searchCmd() *cobra.Command {
	var limit int
	var withContext bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a similarity search against the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > 20 {
				return fmt.Errorf("%w: limit must be between 1 and 20", config.ErrInvalidValue)
			}
			return withApp(cmd, func(a *app.App) error {
				var out interface{}
				if withContext {
					out = a.Search.SearchWithContext(cmd.Context(), args[0], limit)
				} else {
					out = a.Search.Search(cmd.Context(), args[0], limit)
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 5, "maximum number of results")
	cmd.Flags().BoolVar(&withContext, "context", false, "also build the prompt context block")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Ask a question answered from the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				resp, err := a.Chat.Chat(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Output)
				return nil
			})
		},
	}
}

func linksCmd() *cobra.Command {
	var limit int
	var gl, hl, when string
	cmd := &cobra.Command{
		Use:   "links <query>",
		Short: "Collect news links for a query into a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadScraping()
			if err != nil {
				return err
			}
			setupLogger(cfg)
			res, err := app.NewScraping(cfg).SearchLinks(cmd.Context(), scraping.LinkQuery{
				Query: args[0],
				Limit: limit,
				GL:    gl,
				HL:    hl,
				When:  when,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", scraping.DefaultLinkLimit, "number of links to collect")
	cmd.Flags().StringVar(&gl, "gl", "", "country code")
	cmd.Flags().StringVar(&hl, "hl", "", "language code")
	cmd.Flags().StringVar(&when, "when", "", "recency filter such as 7d")
	return cmd
}

func etlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "etl <links.csv>",
		Short: "Download and clean the articles listed in a links file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadScraping()
			if err != nil {
				return err
			}
			setupLogger(cfg)
			res, err := app.NewScraping(cfg).ETL(cmd.Context(), filepath.Base(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
