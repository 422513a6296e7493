package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/derekprior/fixtures/internal/config"
	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/settings"
)

const defaultConfigFile = "season.yaml"

func resolveConfigPath(configFlag string) (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", fmt.Errorf("no season file found. Either create %s in the current directory or pass --config", defaultConfigFile)
}

func loadSeason(configFlag string) (*config.Config, error) {
	path, err := resolveConfigPath(configFlag)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, raw)
	}
	return id, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var (
		settingsFile string
		configFile   string
		rt           *settings.Settings
	)

	rootCmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Round-robin fixture scheduling for court leagues",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load(resolveSettingsPath(settingsFile))
			if err != nil {
				return err
			}
			setupLogger(s)
			rt = s
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "Path to runtime settings (default: fixtures.yaml in current directory, if present)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to season file (default: season.yaml in current directory)")

	// withApp opens the store for the duration of one command.
	withApp := func(cmd *cobra.Command, fn func(a *app) error) error {
		a, err := newApp(cmd.Context(), rt)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(a)
	}

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter season.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the season file")

	competitionCmd := &cobra.Command{
		Use:   "competition",
		Short: "Import competitions and move them through their lifecycle",
	}

	importCmd := &cobra.Command{
		Use:          "import",
		Short:        "Create the competition, teams and rosters described by the season file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			season, err := loadSeason(configFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				return runImport(cmd.Context(), a, season)
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:          "status <competition-id> <draft|registration|active|completed>",
		Short:        "Set a competition's lifecycle status",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "competition ID")
			if err != nil {
				return err
			}
			status, err := league.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				if err := a.store.SetCompetitionStatus(cmd.Context(), id, status); err != nil {
					return err
				}
				fmt.Printf("✓ Competition %d is now %s\n", id, status)
				return nil
			})
		},
	}
	competitionCmd.AddCommand(importCmd, statusCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate, export and validate schedules",
	}

	var outputFile string
	generateCmd := &cobra.Command{
		Use:          "generate <competition-id>",
		Short:        "Generate the round-robin schedule for a competition",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "competition ID")
			if err != nil {
				return err
			}
			season, err := loadSeason(configFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				return runGenerate(cmd.Context(), a, id, season.ScheduleConfig(), outputFile)
			})
		},
	}
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "schedule.xlsx", "Output Excel file path (empty to skip)")

	var exportFile string
	exportCmd := &cobra.Command{
		Use:          "export <competition-id>",
		Short:        "Write a competition's schedule and scores to Excel",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "competition ID")
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				return runExport(cmd.Context(), a, id, exportFile)
			})
		},
	}
	exportCmd.Flags().StringVarP(&exportFile, "output", "o", "schedule.xlsx", "Output Excel file path")

	showCmd := &cobra.Command{
		Use:          "show <competition-id>",
		Short:        "Print a competition's matches by round",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "competition ID")
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				return runShow(cmd.Context(), a, id)
			})
		},
	}

	validateCmd := &cobra.Command{
		Use:          "validate <schedule.xlsx>",
		Short:        "Validate a schedule workbook against the season file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			season, err := loadSeason(configFile)
			if err != nil {
				return err
			}
			return runValidate(season, rt, args[0])
		},
	}

	scheduleCmd.AddCommand(generateCmd, exportCmd, showCmd, validateCmd)

	scoreCmd := &cobra.Command{
		Use:          "score <match-id> <home> <away>",
		Short:        "Record the final score of a match",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := parseID(args[0], "match ID")
			if err != nil {
				return err
			}
			home, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("home score must be an integer, got %q", args[1])
			}
			away, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("away score must be an integer, got %q", args[2])
			}
			return withApp(cmd, func(a *app) error {
				return runScore(cmd.Context(), a, matchID, home, away)
			})
		},
	}

	var addr string
	serveCmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve the HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				rt.Addr = addr
			}
			return withApp(cmd, func(a *app) error {
				return runServe(cmd.Context(), a)
			})
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides settings)")

	rootCmd.AddCommand(initCmd, competitionCmd, scheduleCmd, scoreCmd, serveCmd)
	return rootCmd
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(seasonTemplate), 0644); err != nil {
		return fmt.Errorf("writing season file: %w", err)
	}

	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

const seasonTemplate = `# Season file
# ===========
# Describes one competition, its teams, and how its schedule is laid out.

# The competition is created by 'fixtures competition import'.
competition:
  name: Tuesday Night 4v4
  # 4v4 teams need at least 4 rostered players, 6v6 teams at least 6.
  format: 4v4
  # league or tournament
  kind: league
  # Imported competitions start in registration, which is the only status
  # that allows a schedule to be generated.
  status: registration

# Every team plays every other team exactly once. With an odd number of
# teams one team sits out each round.
teams:
  - name: Aces
    roster: [Ana, Ben, Cy, Dee]
  - name: Blockers
    roster: [Eve, Fin, Gus, Hal]
  - name: Diggers
    roster: [Ivy, Jo, Kai, Lu]
  - name: Spikers
    roster: [Max, Nia, Oz, Pat]

schedule:
  # Round 1 is played on the first day_of_week on or after start_date.
  start_date: "2026-04-20"
  day_of_week: tuesday
  # One round per week. A full cycle needs (teams - 1) rounds, or as many
  # rounds as teams when the count is odd; extra weeks are ignored.
  weeks: 3
  # Court IDs available every matchday. Matches fill every court in a time
  # slot before moving to the next slot.
  courts: [1, 2]
`

func runImport(ctx context.Context, a *app, season *config.Config) error {
	comp, err := a.store.CreateCompetition(ctx, season.NewCompetition())
	if err != nil {
		return fmt.Errorf("importing competition: %w", err)
	}
	fmt.Printf("✓ Created competition %q (ID %d) with %d teams, status %s\n",
		comp.Name, comp.ID, len(comp.Teams), comp.Status)
	return nil
}

func runScore(ctx context.Context, a *app, matchID int64, home, away int) error {
	m, err := a.svc.RecordScore(ctx, matchID, home, away)
	if err != nil {
		return err
	}
	comp, err := a.store.GetCompetition(ctx, m.CompetitionID)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Round %d: %s %d - %d %s\n",
		m.RoundNumber, comp.TeamName(m.HomeTeamID), *m.HomeScore, *m.AwayScore, comp.TeamName(m.AwayTeamID))
	return nil
}
