package main

import (
	"context"
	"fmt"
	"os"

	"github.com/derekprior/fixtures/internal/config"
	"github.com/derekprior/fixtures/internal/excel"
	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/schedule"
	"github.com/derekprior/fixtures/internal/settings"
	"github.com/derekprior/fixtures/internal/validator"
)

func runGenerate(ctx context.Context, a *app, competitionID int64, cfg league.ScheduleConfig, outputPath string) error {
	comp, err := a.store.GetCompetition(ctx, competitionID)
	if err != nil {
		return err
	}

	fmt.Printf("Scheduling %d teams over %d weeks on %d courts...\n",
		len(comp.Teams), cfg.NumberOfWeeks, len(cfg.CourtIDs))

	res, err := a.svc.GenerateSchedule(ctx, competitionID, cfg)
	if err != nil {
		return err
	}

	if res.Rounds < cfg.NumberOfWeeks {
		fmt.Printf("⚠ One cycle needs only %d rounds; %d weeks were requested\n", res.Rounds, cfg.NumberOfWeeks)
	}
	fmt.Printf("✓ %d matches scheduled in %d rounds\n", res.MatchesCreated, res.Rounds)

	printTeamMetrics(comp, a.settings.Scheduling.TimeSlots, res.TeamMetrics)

	if outputPath == "" {
		return nil
	}
	return writeWorkbook(comp, res.Matches, a.settings.Scheduling.TimeSlots, outputPath)
}

func printTeamMetrics(comp *league.Competition, slots schedule.SlotTable, metrics map[int64]*schedule.TeamMetrics) {
	fmt.Println("\nPer Team Metrics:")
	fmt.Printf("  %-15s %7s %4s %4s", "Team", "Matches", "Home", "Away")
	for _, label := range slots.Labels() {
		fmt.Printf(" %5s", label)
	}
	fmt.Printf(" %6s\n", "Debt")

	for _, team := range comp.Teams {
		m, ok := metrics[team.ID]
		if !ok {
			m = &schedule.TeamMetrics{SlotCounts: make([]int, len(slots))}
		}
		fmt.Printf("  %-15s %7d %4d %4d", team.Name, m.Matches, m.Home, m.Away)
		for _, n := range m.SlotCounts {
			fmt.Printf(" %5d", n)
		}
		fmt.Printf(" %+6.1f\n", m.Debt)
	}
}

func runExport(ctx context.Context, a *app, competitionID int64, outputPath string) error {
	comp, matches, err := a.svc.Matches(ctx, competitionID)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return league.StateConflict("export schedule", "competition %q has no schedule yet", comp.Name)
	}
	return writeWorkbook(comp, matches, a.settings.Scheduling.TimeSlots, outputPath)
}

func writeWorkbook(comp *league.Competition, matches []league.Match, slots schedule.SlotTable, outputPath string) error {
	f, err := excel.Generate(comp, matches, slots)
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	defer f.Close()

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}

	fmt.Printf("\n✓ Schedule saved to %s\n", outputPath)
	return nil
}

func runShow(ctx context.Context, a *app, competitionID int64) error {
	comp, matches, err := a.svc.Matches(ctx, competitionID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s, %s)\n", comp.Name, comp.Format, comp.Status)
	if len(matches) == 0 {
		fmt.Println("No schedule generated yet")
		return nil
	}

	round := 0
	for _, m := range matches {
		if m.RoundNumber != round {
			round = m.RoundNumber
			fmt.Printf("\nRound %d - %s\n", round, m.ScheduledDate.Format("Mon 01/02/2006"))
		}
		result := ""
		if m.Scored() {
			result = fmt.Sprintf("  %d-%d", *m.HomeScore, *m.AwayScore)
		}
		fmt.Printf("  #%-5d %s  %s  %s vs %s%s\n",
			m.ID, m.TimeSlot, excel.CourtHeader(m.CourtID),
			comp.TeamName(m.HomeTeamID), comp.TeamName(m.AwayTeamID), result)
	}
	return nil
}

func runValidate(season *config.Config, rt *settings.Settings, schedulePath string) error {
	rules := validator.DefaultRules()
	rules.Slots = rt.Scheduling.TimeSlots

	violations, err := validator.Validate(season, rules, schedulePath)
	if err != nil {
		return fmt.Errorf("validating: %w", err)
	}

	errors := 0
	warnings := 0
	for _, v := range violations {
		switch v.Type {
		case "error":
			errors++
			fmt.Printf("✗ Rule violation: %s\n", v.Message)
		case "warning":
			warnings++
			fmt.Printf("⚠ Guideline violation: %s\n", v.Message)
		}
	}

	fmt.Printf("\nValidation complete: %d rule violations, %d guideline violations\n", errors, warnings)

	if errors > 0 {
		fmt.Fprintf(os.Stderr, "%s does not satisfy the round-robin rules\n", schedulePath)
		return league.Validation("validate schedule", "%d rule violations found", errors)
	}
	return nil
}
