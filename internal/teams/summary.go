package teams

import (
	"fmt"
	"strings"
)

// ExportFilename is the name offered when downloading a summary.
const ExportFilename = "foosball-teams.txt"

// Summary renders an assignment as plain text, one team per line.
func Summary(a Assignment) string {
	lines := []string{"Foosball teams:"}

	for i, t := range a.Teams {
		lines = append(lines, fmt.Sprintf("Team %d: %s", i+1, strings.Join(t, " + ")))
	}

	if len(a.Waiting) > 0 {
		lines = append(lines, "Waiting: "+strings.Join(a.Waiting, ", "))
	}

	return strings.Join(lines, "\n")
}
