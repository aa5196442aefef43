package scoring

import (
	"fmt"
	"math"
)

// GridSize is the side of a bingo card; cards hold GridSize*GridSize objectives in row order.
const GridSize = 5

// Line is a row, column or diagonal of a bingo card.
type Line struct {
	Key          string   `json:"key"`
	ObjectiveIDs []string `json:"objectiveIds"`
}

// GridLines lists a card's lines in detection order: rows, columns, main diagonal, anti
// diagonal. Objective lists that are not a full card have no lines.
func GridLines(objectives []Objective) []Line {
	if len(objectives) != GridSize*GridSize {
		return nil
	}
	cell := func(row, col int) string { return objectives[row*GridSize+col].ID }

	lines := make([]Line, 0, 2*GridSize+2)
	for row := 0; row < GridSize; row++ {
		ids := make([]string, GridSize)
		for col := range ids {
			ids[col] = cell(row, col)
		}
		lines = append(lines, Line{Key: fmt.Sprintf("row-%d", row), ObjectiveIDs: ids})
	}
	for col := 0; col < GridSize; col++ {
		ids := make([]string, GridSize)
		for row := range ids {
			ids[row] = cell(row, col)
		}
		lines = append(lines, Line{Key: fmt.Sprintf("col-%d", col), ObjectiveIDs: ids})
	}
	main := make([]string, GridSize)
	anti := make([]string, GridSize)
	for i := 0; i < GridSize; i++ {
		main[i] = cell(i, i)
		anti[i] = cell(i, GridSize-1-i)
	}
	return append(lines,
		Line{Key: "diag-main", ObjectiveIDs: main},
		Line{Key: "diag-anti", ObjectiveIDs: anti},
	)
}

// DetectBingoLine returns the first complete line whose key is not in announced.
// The caller persists announced keys so a line fires once.
func DetectBingoLine(objectives []Objective, completed, announced map[string]bool) (Line, bool) {
	for _, line := range GridLines(objectives) {
		if announced[line.Key] {
			continue
		}
		full := true
		for _, id := range line.ObjectiveIDs {
			if !completed[id] {
				full = false
				break
			}
		}
		if full {
			return line, true
		}
	}
	return Line{}, false
}

// CompletedObjectives returns the ids whose progress reached their target.
func CompletedObjectives(c Challenge, progress map[string]float64) map[string]bool {
	done := make(map[string]bool)
	for _, obj := range c.Objectives {
		if progress[obj.ID] >= obj.TargetValue {
			done[obj.ID] = true
		}
	}
	return done
}

// CompletionCount is how many times a cell has been filled: floor(value/target).
func CompletionCount(value, target float64) int {
	if target <= 0 || value <= 0 {
		return 0
	}
	return int(math.Floor(value / target))
}
