package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"git.home.luguber.info/inful/courseboot/internal/state"
)

// StatusCmd prints the bootstrap state record and the newest journal events.
type StatusCmd struct {
	Events int `help:"Number of journal events to show" default:"10"`
}

func (s *StatusCmd) Run(_ *Global, root *CLI) error {
	cfg, _, err := loadConfig(root)
	if err != nil {
		return err
	}

	record, err := state.NewStore(cfg.Paths.StateFile()).Load()
	if err != nil {
		return err
	}

	fmt.Printf("phase:           %s\n", record.Phase)
	if record.RunID != "" {
		fmt.Printf("run id:          %s\n", record.RunID)
	}
	if record.InitializedAt != nil {
		fmt.Printf("initialized at:  %s\n", record.InitializedAt.Format(time.RFC3339))
	}
	if record.LastStateCode != nil {
		fmt.Printf("last state code: %d\n", *record.LastStateCode)
	}
	fmt.Printf("build all:       %t\n", record.BuildAll)

	kinds := make([]string, 0, len(record.Rosters))
	for kind := range record.Rosters {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		stamp := record.Rosters[kind]
		fmt.Printf("roster %-9s processed %s (file from %s)\n",
			kind+":",
			stamp.ProcessedAt.Format(time.RFC3339),
			stamp.ModTime.Format(time.RFC3339))
	}

	if !cfg.Journal.IsEnabled() {
		return nil
	}
	if _, err := os.Stat(journalPath(cfg)); err != nil {
		return nil // no journal written yet
	}

	journal, err := state.OpenJournal(journalPath(cfg))
	if err != nil {
		return fmt.Errorf("journal unavailable: %w", err)
	}
	defer func() { _ = journal.Close() }()

	entries, err := journal.Recent(context.Background(), s.Events)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("recent events:")
	for _, e := range entries {
		detail := e.Detail
		if detail != "" {
			detail = "  " + detail
		}
		fmt.Printf("  %s  %-8s %-10s%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Phase, e.EventType, detail)
	}
	return nil
}
