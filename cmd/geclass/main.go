package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/bootstrap"
	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Bool("fatal", apperrors.IsFatal(err)).Msg("Command failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "geclass",
		Usage: "import GEclass survey exports and generate course reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				EnvVars: []string{"GECLASS_CONFIG"},
				Usage:   "path to the YAML configuration",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply database migrations and default lookup data",
				Action: func(c *cli.Context) error {
					return run(c, true, func(ctx context.Context, deps *bootstrap.Dependencies) error {
						return nil
					})
				},
			},
			{
				Name:      "load",
				Usage:     "clean and store a survey export (.xlsx or .csv)",
				ArgsUsage: "<file>",
				Action:    loadAction,
			},
			{
				Name:   "generate-reports",
				Usage:  "generate the reports of every course whose post survey has closed",
				Action: generateReportsAction,
			},
			{
				Name:   "export",
				Usage:  "write all matched responses with course metadata as CSV",
				Flags:  []cli.Flag{outputFlag()},
				Action: exportAction(func(ctx context.Context, d *bootstrap.Dependencies, w io.Writer) (int, error) { return d.Exports.ExportMatched(ctx, w) }),
			},
			{
				Name:   "export-unmatched",
				Usage:  "write valid attempts without a counterpart as CSV",
				Flags:  []cli.Flag{outputFlag()},
				Action: exportAction(func(ctx context.Context, d *bootstrap.Dependencies, w io.Writer) (int, error) { return d.Exports.ExportUnmatched(ctx, w) }),
			},
			{
				Name:   "export-unknown",
				Usage:  "write known course identifiers and unresolved course codes as CSV",
				Flags:  []cli.Flag{outputFlag()},
				Action: exportAction(func(ctx context.Context, d *bootstrap.Dependencies, w io.Writer) (int, error) { return d.Exports.ExportUnknown(ctx, w) }),
			},
			{
				Name:  "send-reminders",
				Usage: "email the owners of courses whose survey starts today",
				Action: func(c *cli.Context) error {
					return run(c, false, func(ctx context.Context, deps *bootstrap.Dependencies) error {
						_, err := deps.Reminders.SendReminders(ctx, time.Now())
						return err
					})
				},
			},
			{
				Name:      "validate-time",
				Usage:     "mark every pre or post attempt of a course as inside the survey window",
				ArgsUsage: "<pre|post> <course identifier>",
				Action:    validateTimeAction,
			},
			{
				Name:  "add-course",
				Usage: "register a course and email its identifier to the owner",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Required: true, Usage: "email of the course owner"},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.TimestampFlag{Name: "pre", Layout: "2006-01-02", Required: true, Usage: "start of the pre survey"},
					&cli.TimestampFlag{Name: "post", Layout: "2006-01-02", Required: true, Usage: "start of the post survey"},
					&cli.IntFlag{Name: "students", Usage: "number of enrolled students"},
					&cli.Int64Flag{Name: "university"},
					&cli.Int64Flag{Name: "program"},
					&cli.Int64Flag{Name: "experience"},
					&cli.Int64Flag{Name: "course-type"},
					&cli.Int64Flag{Name: "traditional"},
				},
				Action: addCourseAction,
			},
		},
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to a file instead of stdout"}
}

// run loads the configuration, connects to the database and hands the wired
// services to fn.
func run(c *cli.Context, migrate bool, fn func(ctx context.Context, deps *bootstrap.Dependencies) error) error {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(c.String("config"))
	if err != nil {
		return err
	}
	database, err := bootstrap.SetupDatabase(c.Context, cfg, lgr, migrate)
	if err != nil {
		return err
	}
	deps, err := bootstrap.BuildDependencies(cfg, database, lgr)
	if err != nil {
		database.Close()
		return err
	}
	defer deps.Close()

	return fn(c.Context, deps)
}

func loadAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("load expects exactly one file", 2)
	}
	path := c.Args().First()

	return run(c, false, func(ctx context.Context, deps *bootstrap.Dependencies) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open export: %w", err)
		}
		defer f.Close()

		rows, err := deps.Reader.Read(ctx, path, f)
		if err != nil {
			return err
		}
		cleaned, err := deps.Cleaner.Clean(ctx, rows)
		if err != nil {
			return err
		}
		for _, r := range cleaned.Rejected {
			deps.Logger.Info().Int("row", r.Number).Str("reason", r.Reason).Msg("Row rejected")
		}
		summary, err := deps.Ingest.Store(ctx, cleaned.Rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "read %d rows: %d rejected, %d stored (%d with unknown course), %d failed\n",
			len(rows), len(cleaned.Rejected), summary.Inserted, summary.Unresolved, summary.Failed)
		return nil
	})
}

func generateReportsAction(c *cli.Context) error {
	return run(c, false, func(ctx context.Context, deps *bootstrap.Dependencies) error {
		outcomes, err := deps.Reports.GenerateReports(ctx)
		for _, o := range outcomes {
			line := fmt.Sprintf("%-8s %-14s matched=%d", o.Identifier, o.State, o.Matched)
			if o.Err != nil {
				line += " error=" + o.Err.Error()
			}
			fmt.Fprintln(c.App.Writer, line)
		}
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			if !o.State.Terminal() {
				return cli.Exit("some reports failed", 3)
			}
		}
		return nil
	})
}

func exportAction(export func(context.Context, *bootstrap.Dependencies, io.Writer) (int, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		return run(c, false, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			var w io.Writer = c.App.Writer
			if path := c.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			_, err := export(ctx, deps, w)
			return err
		})
	}
}

func validateTimeAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("validate-time expects <pre|post> <course identifier>", 2)
	}
	phase, err := models.ParsePhase(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	identifier := c.Args().Get(1)

	return run(c, false, func(ctx context.Context, deps *bootstrap.Dependencies) error {
		n, err := deps.Courses.ValidateTime(ctx, identifier, phase)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d %s attempts of %s marked as on time\n", n, phase, identifier)
		return nil
	})
}

func optionalInt64(c *cli.Context, name string) *int64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int64(name)
	return &v
}

func addCourseAction(c *cli.Context) error {
	input := models.CourseInput{
		Name:           c.String("name"),
		NumberStudents: c.Int("students"),
		UniversityID:   optionalInt64(c, "university"),
		ProgramID:      optionalInt64(c, "program"),
		ExperienceID:   optionalInt64(c, "experience"),
		CourseTypeID:   optionalInt64(c, "course-type"),
		TraditionalID:  optionalInt64(c, "traditional"),
	}
	if pre := c.Timestamp("pre"); pre != nil {
		input.StartDatePre = *pre
	}
	if post := c.Timestamp("post"); post != nil {
		input.StartDatePost = *post
	}

	return run(c, false, func(ctx context.Context, deps *bootstrap.Dependencies) error {
		course, err := deps.Courses.AddCourse(ctx, c.String("owner"), input)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, course.Identifier)
		return nil
	})
}
