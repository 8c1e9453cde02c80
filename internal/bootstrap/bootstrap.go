package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appMigrations "github.com/geclass/geclass/internal/app/migrations"
	"github.com/geclass/geclass/internal/app/report"
	appRepos "github.com/geclass/geclass/internal/app/repositories"
	appServices "github.com/geclass/geclass/internal/app/services"
	"github.com/geclass/geclass/internal/app/survey"
	"github.com/geclass/geclass/internal/config"
	"github.com/geclass/geclass/internal/db"
	"github.com/geclass/geclass/internal/pkg/email"
	"github.com/geclass/geclass/internal/pkg/filestorage"
	"github.com/geclass/geclass/internal/pkg/logger"
	"github.com/geclass/geclass/internal/pkg/spreadsheet"
	"github.com/geclass/geclass/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Database  *db.PostgresDB
	Store     *appRepos.Store
	Reader    *spreadsheet.Reader
	Notifier  email.Notifier
	Storage   *filestorage.LocalStorage
	Publisher *filestorage.S3Publisher

	Cleaner    appServices.CleanerService
	Ingest     appServices.IngestService
	Matcher    appServices.MatchService
	Aggregator appServices.AggregationService
	Reports    appServices.ReportService
	Exports    appServices.ExportService
	Reminders  appServices.ReminderService
	Courses    appServices.CourseService

	Logger zerolog.Logger
}

// Close releases the database pool.
func (d *Dependencies) Close() {
	if d.Database != nil {
		d.Database.Close()
	}
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logger.Configure(logger.FromSettings(cfg.Logging.Level, cfg.Logging.Format))

	lgr := log.Logger
	lgr.Debug().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase connects to the database and, if asked to, applies the
// migrations and the default lookup data.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger, migrate bool) (*db.PostgresDB, error) {
	lgr.Debug().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}

	if !migrate {
		return database, nil
	}

	lgr.Info().Msg("Running database migrations...")
	if err := appMigrations.NewMigrator(database.Pool).Migrate(ctx); err != nil {
		database.Close()
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	if err := seed.CreateDefaultData(ctx, appRepos.NewLookupRepository(database.Pool), lgr); err != nil {
		// Missing lookup values only affect course registration.
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	return database, nil
}

// BuildDependencies initializes repositories and services.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Database: database,
		Logger:   lgr,
		Reader:   spreadsheet.NewReader(),
	}
	deps.Store = appRepos.NewStore(database)
	repos := deps.Store.Repositories

	deps.Notifier = email.NewSMTPNotifier(email.SMTPConfig{
		Host:      cfg.Email.Host,
		Port:      cfg.Email.Port,
		Username:  cfg.Email.Username,
		Password:  cfg.Email.Password,
		FromEmail: cfg.Email.From,
		UseTLS:    cfg.Email.Port == 465,
	}, logger.Component("email"))

	var err error
	deps.Storage, err = filestorage.NewLocalStorage(cfg.Report.OutputDir)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize report storage")
		return nil, fmt.Errorf("failed to initialize report storage: %w", err)
	}

	if cfg.Storage.S3.Enabled {
		deps.Publisher, err = filestorage.NewS3Publisher(filestorage.S3Config{
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			Prefix:    cfg.Storage.S3.Prefix,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
		})
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to initialize report publisher")
			return nil, fmt.Errorf("failed to initialize report publisher: %w", err)
		}
	}

	loc := cfg.Location()
	mode := survey.ParseMode(cfg.Survey.Disagreement)

	deps.Cleaner = appServices.NewCleanerService(repos.CourseRepository, appServices.CleanerOptions{
		ControlAnswer: cfg.Survey.ControlAnswer,
		WindowDays:    cfg.SurveyWindow(),
		Location:      loc,
	}, logger.Component("cleaner"))
	deps.Ingest = appServices.NewIngestService(appServices.NewTransactor(deps.Store), logger.Component("ingest"))
	deps.Matcher = appServices.NewMatchService(repos.QuestionnaireRepository, mode, logger.Component("matcher"))
	deps.Aggregator = appServices.NewAggregationService(cfg.Report.Significance)

	renderer := report.NewRenderer(
		report.ExecRunner{Timeout: cfg.ReportTimeout(), Logger: logger.Component("renderer")},
		report.Commands{
			Plot:  cfg.Report.PlotCommand,
			Build: cfg.Report.BuildCommand,
			Clean: cfg.Report.CleanCommand,
		},
		logger.Component("renderer"),
	)

	reportCfg := appServices.ReportServiceConfig{
		Courses:    repos.CourseRepository,
		Counter:    repos.QuestionnaireRepository,
		Matcher:    deps.Matcher,
		Similar:    repos.CourseRepository,
		Aggregator: deps.Aggregator,
		Storage:    deps.Storage,
		Renderer:   renderer,
		Notifier:   deps.Notifier,
		Operators:  cfg.Email.Operators,
		DueAfter:   cfg.ReportDueAfter(),
		Location:   loc,
		Logger:     logger.Component("reports"),
	}
	if deps.Publisher != nil {
		reportCfg.Publisher = deps.Publisher
	}
	deps.Reports = appServices.NewReportService(reportCfg)

	deps.Exports = appServices.NewExportService(appServices.ExportStores{
		Courses:        repos.CourseRepository,
		Students:       repos.StudentRepository,
		Questionnaires: repos.QuestionnaireRepository,
	}, deps.Matcher, nil, logger.Component("export"))

	deps.Reminders = appServices.NewReminderService(repos.CourseRepository, deps.Notifier, appServices.ReminderOptions{
		SurveyURL:  cfg.Survey.URL,
		WindowDays: cfg.SurveyWindow(),
		Operators:  cfg.Email.Operators,
		Location:   loc,
	}, logger.Component("reminders"))

	deps.Courses = appServices.NewCourseService(
		repos.CourseRepository,
		repos.UserRepository,
		repos.QuestionnaireRepository,
		deps.Notifier,
		logger.Component("courses"),
	)

	return deps, nil
}
