package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/apperr"
	"github.com/nidhogg/skillgate/internal/schedule"
	"github.com/nidhogg/skillgate/internal/skill"
	"github.com/nidhogg/skillgate/internal/slug"
	pgstore "github.com/nidhogg/skillgate/internal/store"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "skillgate",
		Usage:   "Operator tools for the skill catalog and access resolution",
		Version: Version,
		Commands: []*cli.Command{
			slugifyCmd(logger),
			cronCmd(),
			catalogCmd(),
			seedCmd(logger),
			resolveCmd(logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

var dsnFlag = &cli.StringFlag{
	Name:     "dsn",
	Usage:    "PostgreSQL connection string",
	EnvVars:  []string{"SKILLGATE_DSN"},
	Required: true,
}

// slugifyCmd creates the slugify command.
func slugifyCmd(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "slugify",
		Usage:     "Print the slug for a skill name (the next free one when --dsn is set)",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dsn", Usage: "PostgreSQL connection string to probe for collisions"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(apperr.NewInvalidRequest("name is required"))
			}
			base := slug.Slugify(strings.Join(c.Args().Slice(), " "))
			if c.String("dsn") == "" {
				fmt.Fprintln(c.App.Writer, base)
				return nil
			}

			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()
			st, err := pgstore.New(ctx, c.String("dsn"), logger)
			if err != nil {
				return outputError(apperr.NewUnavailable(err))
			}
			defer st.Close()

			free, err := slug.EnsureUnique(ctx, st.SkillSlugExists, base)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintln(c.App.Writer, free)
			return nil
		},
	}
}

// cronCmd creates the cron command group.
func cronCmd() *cli.Command {
	return &cli.Command{
		Name:  "cron",
		Usage: "Validate cron expressions and preview schedules",
		Subcommands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Check a 5-field cron expression",
				ArgsUsage: "<expr>",
				Action: func(c *cli.Context) error {
					return outputJSON(c, schedule.ValidateCron(c.Args().First()))
				},
			},
			{
				Name:      "next",
				Usage:     "Print upcoming activations in UTC",
				ArgsUsage: "<expr>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tz", Usage: "IANA timezone (default UTC)"},
					&cli.TimestampFlag{Name: "after", Layout: time.RFC3339, Usage: "Start instant (default now)"},
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: "Number of activations"},
				},
				Action: func(c *cli.Context) error {
					after := time.Now()
					if ts := c.Timestamp("after"); ts != nil {
						after = *ts
					}
					runs, err := nextRuns(c.Args().First(), c.String("tz"), after, c.Int("count"))
					if err != nil {
						return outputError(apperr.NewInvalidCron(err.Error()))
					}
					for _, r := range runs {
						fmt.Fprintln(c.App.Writer, r.Format(time.RFC3339))
					}
					return nil
				},
			},
		},
	}
}

func nextRuns(expr, tz string, after time.Time, count int) ([]time.Time, error) {
	if count < 1 {
		count = 1
	}
	runs := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		next, err := schedule.NextRun(expr, tz, after)
		if err != nil {
			return nil, err
		}
		runs = append(runs, next)
		after = next
	}
	return runs, nil
}

// catalog builds the global catalog from builtins plus a skills directory.
func catalog(dir string) (*skill.Manager, error) {
	mgr := skill.NewManager()
	skill.RegisterBuiltins(mgr)
	if dir == "" {
		return mgr, nil
	}
	loaded, err := skill.LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	for _, s := range loaded {
		mgr.Add(s)
	}
	return mgr, nil
}

type catalogEntry struct {
	Slug         string              `json:"slug"`
	Name         string              `json:"name"`
	Source       string              `json:"source"`
	Requirements access.Requirements `json:"required_integrations"`
}

// catalogCmd creates the catalog command.
func catalogCmd() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "List builtin and directory skills without touching the database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: "skills", Usage: "Skills directory"},
		},
		Action: func(c *cli.Context) error {
			mgr, err := catalog(c.String("dir"))
			if err != nil {
				return outputError(err)
			}
			entries := make([]catalogEntry, 0, mgr.Len())
			for _, s := range mgr.All() {
				entries = append(entries, catalogEntry{
					Slug:         s.Slug,
					Name:         s.Name,
					Source:       s.Source,
					Requirements: s.Requirements,
				})
			}
			return outputJSON(c, entries)
		},
	}
}

// seedCmd creates the seed command.
func seedCmd(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Upsert the global catalog into PostgreSQL",
		Flags: []cli.Flag{
			dsnFlag,
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: "skills", Usage: "Skills directory"},
			&cli.StringFlag{Name: "migrations", Value: "migrations", Usage: "Migrations directory; empty skips migration"},
		},
		Action: func(c *cli.Context) error {
			mgr, err := catalog(c.String("dir"))
			if err != nil {
				return outputError(err)
			}
			ctx := c.Context
			st, err := pgstore.New(ctx, c.String("dsn"), logger)
			if err != nil {
				return outputError(apperr.NewUnavailable(err))
			}
			defer st.Close()
			if dir := c.String("migrations"); dir != "" {
				if err := st.Migrate(ctx, dir); err != nil {
					return outputError(err)
				}
			}
			n, err := mgr.Seed(ctx, st)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]int{"seeded": n})
		},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Print a user's effective access",
		Flags: []cli.Flag{
			dsnFlag,
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Usage: "User ID"},
			&cli.StringFlag{Name: "org", Aliases: []string{"o"}, Usage: "Organization ID (empty for individuals)"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			st, err := pgstore.New(ctx, c.String("dsn"), logger)
			if err != nil {
				return outputError(apperr.NewUnavailable(err))
			}
			defer st.Close()

			resolver := access.NewResolver(nil, logger)
			eff, err := resolver.Resolve(ctx, access.NewScope(st, st), c.String("user"), c.String("org"))
			if err != nil {
				return outputError(apperr.NewUnavailable(err))
			}
			return outputJSON(c, eff)
		},
	}
}

// outputJSON writes v as indented JSON to the app's writer.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if ae, ok := err.(*apperr.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", ae.Code, ae.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
