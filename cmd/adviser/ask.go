package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fairplaylabs/adviser/stream"
)

func newAskCmd(configPath *string) *cobra.Command {
	var (
		conversationID string
		corpusPath     string
		noStream       bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a governance question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(args[0])
			if question == "" {
				return fmt.Errorf("question is empty")
			}

			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			if corpusPath != "" {
				if err := loadCorpus(ctx, rt, corpusPath); err != nil {
					return err
				}
			}

			if noStream {
				final, err := rt.adviser.Ask(ctx, conversationID, question)
				if err != nil {
					return err
				}
				fmt.Println(final.Answer)
				if final.Disclaimer != "" {
					fmt.Println("\n" + final.Disclaimer)
				}
				for _, c := range final.Citations {
					fmt.Printf("  - %s\n", c.Title)
				}
				return nil
			}

			for event := range rt.adviser.Stream(ctx, conversationID, question) {
				renderEvent(event)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id for follow-up context")
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "JSONL corpus to index before answering")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the full answer instead of streaming")
	return cmd
}

func renderEvent(event stream.Event) {
	switch event.Type {
	case stream.EventStatus:
		fmt.Fprintf(os.Stderr, "... %s\n", event.Status)
	case stream.EventTextDelta:
		fmt.Print(event.Text)
	case stream.EventAnswerReset:
		fmt.Print("\n[revising answer]\n")
	case stream.EventCitations:
		fmt.Print("\n\nSources:\n")
		for _, c := range event.Citations {
			fmt.Printf("  - %s\n", c.Title)
		}
	case stream.EventEscalation:
		fmt.Fprintf(os.Stderr, "!! referred to %s (%s)\n", event.Escalation.Target, event.Escalation.Urgency)
	case stream.EventDiscoveredURLs:
		for _, u := range event.URLs {
			fmt.Fprintf(os.Stderr, "  web: %s\n", u)
		}
	case stream.EventError:
		fmt.Fprintf(os.Stderr, "error: %s\n", event.Err)
	case stream.EventDone:
		fmt.Println()
	}
}
