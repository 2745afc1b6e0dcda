// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/loupe"
	"github.com/poiesic/loupe/core"
	"github.com/poiesic/loupe/embed"
	"github.com/poiesic/loupe/session"
)

func main() {
	app := &cli.App{
		Name:   "loupe",
		Usage:  "Project-wide text, regex and semantic search",
		Before: setupLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search the project for a pattern",
				ArgsUsage: "PATTERN",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Project root to search",
						Value:   ".",
					},
					&cli.BoolFlag{
						Name:    "regex",
						Aliases: []string{"e"},
						Usage:   "Interpret PATTERN as a regular expression",
					},
					&cli.BoolFlag{
						Name:    "case-sensitive",
						Aliases: []string{"s"},
						Usage:   "Match case exactly",
					},
					&cli.BoolFlag{
						Name:    "word",
						Aliases: []string{"w"},
						Usage:   "Match whole words only",
					},
					&cli.StringFlag{
						Name:  "include",
						Usage: "Comma-separated globs of files to search",
					},
					&cli.StringFlag{
						Name:  "exclude",
						Usage: "Comma-separated globs of files to skip",
					},
				},
			},
			{
				Name:      "semantic",
				Usage:     "Index the project and run a semantic query",
				ArgsUsage: "PHRASE",
				Action:    semanticCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Project root to search",
						Value:   ".",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to the embedding index directory (in-memory if omitted)",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func searchCommand(c *cli.Context) error {
	pattern := c.Args().First()
	if pattern == "" {
		return fmt.Errorf("pattern is required")
	}

	s, err := loupe.Open(c.String("path"))
	if err != nil {
		return fmt.Errorf("failed to open project: %w", err)
	}
	defer s.Close()

	ctl := s.Controller()
	done := make(chan error, 1)
	var once sync.Once
	finish := func(err error) {
		once.Do(func() { done <- err })
	}

	unsubscribe := ctl.Subscribe(func(ev session.Event) {
		switch e := ev.(type) {
		case session.InputErrorsEvent:
			finish(e.Errors)
		case session.SearchFailedEvent:
			finish(e.Err)
		case session.PendingChangedEvent:
			if !e.Pending {
				finish(nil)
			}
		}
	})
	defer unsubscribe()

	ctl.SetQueryText(pattern)
	ctl.SetIncludeText(c.String("include"))
	ctl.SetExcludeText(c.String("exclude"))
	if c.Bool("case-sensitive") {
		ctl.ToggleOption(session.OptionCaseSensitive)
	}
	if c.Bool("word") {
		ctl.ToggleOption(session.OptionWholeWord)
	}
	if c.Bool("regex") {
		ctl.ToggleOption(session.OptionRegex)
	}
	ctl.Execute()

	if err := <-done; err != nil {
		return err
	}

	for _, match := range ctl.CurrentMatches() {
		line, col := locate(s, match)
		fmt.Printf("%s:%d:%d\n", match.Path, line, col)
	}
	return nil
}

func semanticCommand(c *cli.Context) error {
	phrase := strings.Join(c.Args().Slice(), " ")
	if phrase == "" {
		return fmt.Errorf("phrase is required")
	}

	cfg := embed.NewConfig(
		embed.WithHost(c.String("embedding-host")),
		embed.WithModel(c.String("embedding-model")),
	)

	s, err := loupe.Open(c.String("path"), loupe.WithSemantic(cfg, c.String("db")))
	if err != nil {
		return fmt.Errorf("failed to open project: %w", err)
	}
	defer s.Close()

	ctl := s.Controller()
	indexed := make(chan error, 1)
	queryErrs := make(chan error, 1)
	results := make(chan []core.SemanticResult, 1)
	var once sync.Once

	unsubscribe := ctl.Subscribe(func(ev session.Event) {
		switch e := ev.(type) {
		case session.SemanticProgressEvent:
			fmt.Fprintf(os.Stderr, "\rIndexing. %d of %d...", e.Done, e.Total)
			if e.Done == e.Total {
				fmt.Fprintln(os.Stderr)
				once.Do(func() { indexed <- nil })
			}
		case session.IndexFailedEvent:
			once.Do(func() { indexed <- e.Err })
		case session.SearchFailedEvent:
			select {
			case queryErrs <- e.Err:
			default:
			}
		case session.SemanticResultsEvent:
			select {
			case results <- e.Results:
			default:
			}
		}
	})
	defer unsubscribe()

	ctl.ToggleSemantic()
	if err := <-indexed; err != nil {
		return err
	}

	ctl.IssueSemanticQuery(phrase)
	select {
	case err := <-queryErrs:
		return err
	case ranked := <-results:
		for _, result := range ranked {
			fmt.Printf("%s  %.3f  %s\n", result.Path, result.Score, result.Excerpt)
		}
	}
	return nil
}

// locate converts a match's resolved start offset into 1-based line and
// column numbers.
func locate(s *loupe.Search, match core.MatchRange) (line, col int) {
	doc, ok := s.Store().Document(match.Doc)
	if !ok {
		return 0, 0
	}
	offset, err := s.Store().Resolve(match.Doc, match.Start)
	if err != nil || offset > len(doc.Text) {
		return 0, 0
	}
	prefix := doc.Text[:offset]
	line = strings.Count(prefix, "\n") + 1
	if i := strings.LastIndexByte(prefix, '\n'); i >= 0 {
		col = offset - i
	} else {
		col = offset + 1
	}
	return line, col
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
