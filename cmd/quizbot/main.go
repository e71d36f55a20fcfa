// Command quizbot is a smoke and load client for the quiz relay server. It
// creates a session over the REST API, joins it with one host and a number
// of players over WebSocket, broadcasts a question and reports how many
// answers were relayed back to the host.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/quizrelay/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "quizbot",
		Usage: "Exercise a quiz relay server with a simulated host and players",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Relay server base URL"},
			&cli.IntFlag{Name: "players", Value: 5, Usage: "Number of simulated players"},
			&cli.IntFlag{Name: "answers", Value: 1, Usage: "Answers sent by each player"},
			&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "Overall run timeout"},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := "warn"
	if cmd.Bool("verbose") {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})

	bot := NewBot(Options{
		BaseURL: cmd.String("url"),
		Players: int(cmd.Int("players")),
		Answers: int(cmd.Int("answers")),
		Timeout: cmd.Duration("timeout"),
	}, log)

	report, err := bot.Run(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(cmd.Root().Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(cmd, report)
	if report.AnswersReceived != report.AnswersSent {
		return fmt.Errorf("host received %d of %d answers", report.AnswersReceived, report.AnswersSent)
	}
	return nil
}

func printReport(cmd *cli.Command, r *Report) {
	w := cmd.Root().Writer
	fmt.Fprintf(w, "\n=== Session %s ===\n", r.Pin)
	fmt.Fprintf(w, "Host:                %s\n", r.HostID)
	fmt.Fprintf(w, "Players:             %d\n", r.Players)
	fmt.Fprintf(w, "Questions delivered: %d/%d\n", r.QuestionsDelivered, r.Players)
	fmt.Fprintf(w, "Answers relayed:     %d/%d\n", r.AnswersReceived, r.AnswersSent)
	fmt.Fprintf(w, "Duration:            %s\n", r.Duration)

	ids := make([]string, 0, len(r.PerPlayer))
	for id := range r.PerPlayer {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d\n", id, r.PerPlayer[id])
	}
}
