package excel

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/schedule"
)

// MasterSheet is the name of the sheet holding every match.
const MasterSheet = "Master Schedule"

// BalanceSheet summarizes each team's home/away split and slot counts.
const BalanceSheet = "Slot Balance"

// DateFormat is how dates are written to, and read back from, the workbook.
const DateFormat = "01/02/2006"

// Generate creates an Excel workbook with the master schedule, a slot balance
// summary, and per-team sheets.
func Generate(comp *league.Competition, matches []league.Match, slots schedule.SlotTable) (*excelize.File, error) {
	f := excelize.NewFile()

	// Set default font for the workbook
	f.SetDefaultFont("Arial")

	if err := writeMasterSheet(f, comp, matches); err != nil {
		return nil, fmt.Errorf("writing master sheet: %w", err)
	}

	if err := writeBalanceSheet(f, comp, matches, slots); err != nil {
		return nil, fmt.Errorf("writing balance sheet: %w", err)
	}

	if err := writeTeamSheets(f, comp, matches); err != nil {
		return nil, fmt.Errorf("writing team sheets: %w", err)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

// CourtHeader is the master sheet column title for a court.
func CourtHeader(id int64) string {
	return fmt.Sprintf("Court %d", id)
}

// GameCell renders a match the way the master sheet shows it: "Home vs Away",
// with the score appended once recorded.
func GameCell(home, away string, m league.Match) string {
	cell := home + " vs " + away
	if m.Scored() {
		cell += fmt.Sprintf(" (%d-%d)", *m.HomeScore, *m.AwayScore)
	}
	return cell
}

// SheetName makes a team name usable as a sheet name: at most 31
// characters and none of : \ / ? * [ ].
func SheetName(team string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, team)
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	return style
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}
	if style := headerStyle(f); style != 0 {
		f.SetCellStyle(sheet, cellRef(1, 1), cellRef(len(headers), 1), style)
	}
}

func writeMasterSheet(f *excelize.File, comp *league.Competition, matches []league.Match) error {
	sheet := MasterSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	var courts []int64
	for _, m := range matches {
		if !slices.Contains(courts, m.CourtID) {
			courts = append(courts, m.CourtID)
		}
	}
	slices.Sort(courts)

	// Headers: Round, Date, Day, Time, Court 1, Court 2, ...
	headers := []string{"Round", "Date", "Day", "Time"}
	for _, c := range courts {
		headers = append(headers, CourtHeader(c))
	}
	writeHeaders(f, sheet, headers)

	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	courtCellStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 16, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	courtCol := make(map[int64]int, len(courts))
	for i, c := range courts {
		courtCol[c] = i + 5
	}

	// One row per (round, time slot); each court gets its own column.
	type rowKey struct {
		round int
		date  time.Time
		slot  string
	}
	byRow := make(map[rowKey][]league.Match)
	var keys []rowKey
	for _, m := range matches {
		k := rowKey{m.RoundNumber, m.ScheduledDate, m.TimeSlot}
		if _, ok := byRow[k]; !ok {
			keys = append(keys, k)
		}
		byRow[k] = append(byRow[k], m)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].round != keys[j].round {
			return keys[i].round < keys[j].round
		}
		if !keys[i].date.Equal(keys[j].date) {
			return keys[i].date.Before(keys[j].date)
		}
		return keys[i].slot < keys[j].slot
	})

	// A round with more matches than slots times courts puts two matches on
	// one court in the same slot; the second goes on the next row.
	row := 1
	for _, k := range keys {
		games := byRow[k]
		slices.SortStableFunc(games, func(a, b league.Match) int { return cmp.Compare(a.ID, b.ID) })

		used := make(map[int64]int, len(courts))
		for _, m := range games {
			line := row + 1 + used[m.CourtID]
			used[m.CourtID]++
			cell := GameCell(comp.TeamName(m.HomeTeamID), comp.TeamName(m.AwayTeamID), m)
			f.SetCellValue(sheet, cellRef(courtCol[m.CourtID], line), cell)
		}
		lines := 1
		for _, n := range used {
			lines = max(lines, n)
		}

		for range lines {
			row++
			f.SetCellValue(sheet, cellRef(1, row), k.round)
			f.SetCellValue(sheet, cellRef(2, row), k.date.Format(DateFormat))
			f.SetCellValue(sheet, cellRef(3, row), k.date.Format("Mon"))
			f.SetCellValue(sheet, cellRef(4, row), k.slot)

			if cellStyle != 0 {
				f.SetCellStyle(sheet, cellRef(1, row), cellRef(4, row), cellStyle)
			}
			if courtCellStyle != 0 && len(courts) > 0 {
				f.SetCellStyle(sheet, cellRef(5, row), cellRef(len(headers), row), courtCellStyle)
			}
		}
	}

	// Set column widths (sized for Arial 16)
	f.SetColWidth(sheet, "A", "A", 10)
	f.SetColWidth(sheet, "B", "B", 18)
	f.SetColWidth(sheet, "C", "C", 8)
	f.SetColWidth(sheet, "D", "D", 10)
	for i := range courts {
		col := colLetter(i + 5)
		f.SetColWidth(sheet, col, col, 36)
	}

	// Conditional formatting: played matches get a light green fill
	if len(courts) > 0 && row > 1 {
		lastRow := row
		greenFill, _ := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#C6EFCE"}},
			Font: &excelize.Font{Size: 16, Family: "Arial"},
		})
		for i := range courts {
			col := colLetter(i + 5)
			cellRange := fmt.Sprintf("%s2:%s%d", col, col, lastRow)
			topCell := fmt.Sprintf("%s2", col)
			formula := fmt.Sprintf(`NOT(ISERROR(FIND(" (",%s)))`, topCell)
			f.SetConditionalFormat(sheet, cellRange, []excelize.ConditionalFormatOptions{
				{
					Type:     "formula",
					Criteria: formula,
					Format:   &greenFill,
				},
			})
		}
	}

	return nil
}

func writeBalanceSheet(f *excelize.File, comp *league.Competition, matches []league.Match, slots schedule.SlotTable) error {
	sheet := BalanceSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	labels := slots.Labels()
	headers := append([]string{"Team", "Matches", "Home", "Away"}, labels...)
	headers = append(headers, "Slot Debt")
	writeHeaders(f, sheet, headers)

	balance := Balance(comp, matches, slots)
	for i, team := range comp.Teams {
		row := i + 2
		b := balance[team.ID]
		f.SetCellValue(sheet, cellRef(1, row), team.Name)
		f.SetCellValue(sheet, cellRef(2, row), b.Matches)
		f.SetCellValue(sheet, cellRef(3, row), b.Home)
		f.SetCellValue(sheet, cellRef(4, row), b.Away)
		for j := range labels {
			f.SetCellValue(sheet, cellRef(5+j, row), b.SlotCounts[j])
		}
		f.SetCellValue(sheet, cellRef(5+len(labels), row), b.Debt)
	}

	f.SetColWidth(sheet, "A", "A", 24)
	return nil
}

// Balance tallies per-team match counts, home/away split, slot usage, and
// slot debt against the given table. Slots missing from the table are not
// counted toward slot usage or debt.
func Balance(comp *league.Competition, matches []league.Match, slots schedule.SlotTable) map[int64]*schedule.TeamMetrics {
	index := make(map[string]int, len(slots))
	for i, s := range slots {
		index[s.Label] = i
	}
	mean := slots.Mean()

	out := make(map[int64]*schedule.TeamMetrics, len(comp.Teams))
	for _, t := range comp.Teams {
		out[t.ID] = &schedule.TeamMetrics{SlotCounts: make([]int, len(slots))}
	}
	get := func(id int64) *schedule.TeamMetrics {
		if _, ok := out[id]; !ok {
			out[id] = &schedule.TeamMetrics{SlotCounts: make([]int, len(slots))}
		}
		return out[id]
	}

	for _, m := range matches {
		home, away := get(m.HomeTeamID), get(m.AwayTeamID)
		home.Home++
		away.Away++
		for _, tm := range []*schedule.TeamMetrics{home, away} {
			tm.Matches++
			if i, ok := index[m.TimeSlot]; ok {
				tm.SlotCounts[i]++
				tm.Debt += mean - slots[i].Weight
			}
		}
	}
	return out
}

func writeTeamSheets(f *excelize.File, comp *league.Competition, matches []league.Match) error {
	for _, team := range comp.Teams {
		sheet := SheetName(team.Name)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sheet for %s: %w", team.Name, err)
		}

		headers := []string{"Round", "Date", "Day", "Time", "Court", "Opponent", "Home/Away", "Result"}
		writeHeaders(f, sheet, headers)

		// Collect and sort this team's games
		type teamGame struct {
			round    int
			date     time.Time
			slot     string
			court    int64
			opponent string
			homeAway string
			result   string
		}
		var games []teamGame
		for _, m := range matches {
			g := teamGame{round: m.RoundNumber, date: m.ScheduledDate, slot: m.TimeSlot, court: m.CourtID}
			switch team.ID {
			case m.HomeTeamID:
				g.opponent, g.homeAway = comp.TeamName(m.AwayTeamID), "Home"
				if m.Scored() {
					g.result = fmt.Sprintf("%d-%d", *m.HomeScore, *m.AwayScore)
				}
			case m.AwayTeamID:
				g.opponent, g.homeAway = comp.TeamName(m.HomeTeamID), "Away"
				if m.Scored() {
					g.result = fmt.Sprintf("%d-%d", *m.AwayScore, *m.HomeScore)
				}
			default:
				continue
			}
			games = append(games, g)
		}
		sort.Slice(games, func(i, j int) bool {
			if !games[i].date.Equal(games[j].date) {
				return games[i].date.Before(games[j].date)
			}
			return games[i].slot < games[j].slot
		})

		cellStyle, _ := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Size: 16, Family: "Arial"},
		})

		for i, g := range games {
			row := i + 2
			f.SetCellValue(sheet, cellRef(1, row), g.round)
			f.SetCellValue(sheet, cellRef(2, row), g.date.Format(DateFormat))
			f.SetCellValue(sheet, cellRef(3, row), g.date.Format("Mon"))
			f.SetCellValue(sheet, cellRef(4, row), g.slot)
			f.SetCellValue(sheet, cellRef(5, row), CourtHeader(g.court))
			f.SetCellValue(sheet, cellRef(6, row), g.opponent)
			f.SetCellValue(sheet, cellRef(7, row), g.homeAway)
			f.SetCellValue(sheet, cellRef(8, row), g.result)
			if cellStyle != 0 {
				f.SetCellStyle(sheet, cellRef(1, row), cellRef(len(headers), row), cellStyle)
			}
		}

		// Set column widths (sized for Arial 16)
		widths := map[string]float64{"A": 10, "B": 18, "C": 8, "D": 10, "E": 14, "F": 24, "G": 14, "H": 12}
		for col, w := range widths {
			f.SetColWidth(sheet, col, col, w)
		}
	}

	return nil
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
