package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/fairplaylabs/adviser/core"
)

func newIngestCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [corpus.jsonl]",
		Short: "Index a document corpus for retrieval",
		Long: `Index a corpus file into the full-text search database. The file holds
one JSON document per line with the fields id, title, content,
organization and domain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := loadCorpus(cmd.Context(), rt, args[0]); err != nil {
				return err
			}
			fmt.Println("corpus indexed")
			return nil
		},
	}
	return cmd
}

// loadCorpus indexes a JSONL corpus into both the lexical store and the
// in-process vector index.
func loadCorpus(ctx context.Context, rt *runtime, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if raw == "" {
			continue
		}
		doc := gjson.Parse(raw)
		id := doc.Get("id").String()
		content := doc.Get("content").String()
		if id == "" || content == "" {
			return fmt.Errorf("corpus line %d: id and content are required", line)
		}
		title := doc.Get("title").String()
		organization := doc.Get("organization").String()
		domain := core.Domain(doc.Get("domain").String())

		if err := rt.lexical.Add(ctx, id, content, title, organization, domain); err != nil {
			return fmt.Errorf("corpus line %d: %w", line, err)
		}
		if err := rt.vectors.Add(ctx, content, map[string]any{
			"title":        title,
			"organization": organization,
			"domain":       string(domain),
			"source":       id,
		}); err != nil {
			return fmt.Errorf("corpus line %d: %w", line, err)
		}
	}
	return scanner.Err()
}
