package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/ai"
	"github.com/spigell/locum-chat/internal/extract"
	"github.com/spigell/locum-chat/internal/logger"
	"github.com/spigell/locum-chat/internal/session"
)

const consoleSessionID = "console"

const consoleApology = "Sorry, I had trouble writing a reply just now. The matches are listed below."

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the job matcher from the terminal",
	Run: func(_ *cobra.Command, _ []string) {
		console()
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// console runs the same pipeline as serve behind an interactive prompt.
func console() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	store, engine, sessions := buildMatchPipeline(config, logger)

	composer, err := newComposer(ctx, aiConfig(config), logger)
	if err != nil {
		logger.Fatal("building the reply composer", zap.Error(err))
	}

	fmt.Printf("%s console, catalog holds %d postings. Type 'exit' to quit.\n", app, store.Len())

	for ctx.Err() == nil {
		input := promptui.Prompt{Label: "you"}

		message, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading input", zap.Error(err))
		}

		message = strings.TrimSpace(message)
		if message == "" {
			continue
		}
		if strings.EqualFold(message, "exit") || strings.EqualFold(message, "quit") {
			return
		}

		result := engine.Search(extract.FromMessage(message))

		history := sessions.History(consoleSessionID)
		sessions.Append(consoleSessionID, session.RoleUser, message)

		text, err := composer.ComposeReply(ctx, &ai.Request{
			Message:      message,
			History:      history,
			Matches:      result.Postings,
			FallbackNote: result.FallbackNote,
		})
		if err != nil {
			logger.Warn("compose reply failed", zap.Error(err))
			text = consoleApology
		} else {
			sessions.Append(consoleSessionID, session.RoleAssistant, text)
		}

		fmt.Printf("\n%s\n", text)
		for _, p := range result.Postings {
			fmt.Printf("  - %s\n", p.Label())
		}
		fmt.Println()
	}
}
