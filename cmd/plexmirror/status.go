package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vmunix/plexmirror/internal/journal"
	"github.com/vmunix/plexmirror/internal/plex"
)

var statusFlags struct {
	jsonOut  bool
	insecure bool
	journal  string
	recent   int
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show both server identities and recent runs",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.BoolVar(&statusFlags.jsonOut, "json", false, "Output as JSON")
	f.BoolVar(&statusFlags.insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringVar(&statusFlags.journal, "journal", "", "SQLite journal file to read recent runs from")
	f.IntVar(&statusFlags.recent, "recent", 5, "Number of recent runs to show")

	rootCmd.AddCommand(statusCmd)
}

type serverStatus struct {
	Role      string `json:"role"`
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	MachineID string `json:"machine_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		exitConfig(err)
	}
	if statusFlags.insecure {
		cfg.Insecure = true
	}
	if statusFlags.journal != "" {
		cfg.Journal = statusFlags.journal
	}
	if err := cfg.Validate(); err != nil {
		exitConfig(err)
	}

	log := newLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []serverStatus{
		{Role: "source", URL: cfg.Source.URL},
		{Role: "destination", URL: cfg.Destination.URL},
	}
	tokens := []string{cfg.Source.Token, cfg.Destination.Token}

	// Status never mutates either server, so probe both at once.
	g, gctx := errgroup.WithContext(ctx)
	for i := range servers {
		g.Go(func() error {
			client := plex.NewClient(servers[i].URL, tokens[i], cfg.Insecure, log)
			id, err := client.Identity(gctx)
			if err != nil {
				servers[i].Error = err.Error()
				return nil
			}
			servers[i].Name = id.Name
			servers[i].Version = id.Version
			servers[i].MachineID = id.MachineID
			return nil
		})
	}
	_ = g.Wait()

	var runs []journal.Entry
	if cfg.Journal != "" {
		if j, err := journal.Open(cfg.Journal); err == nil {
			runs, _ = j.Recent(statusFlags.recent)
			_ = j.Close()
		}
	}

	if statusFlags.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Servers []serverStatus  `json:"servers"`
			Runs    []journal.Entry `json:"runs,omitempty"`
		}{servers, runs})
	}

	for _, s := range servers {
		if s.Error != "" {
			fmt.Printf("%-12s %s\n             unreachable: %s\n", s.Role, s.URL, s.Error)
			continue
		}
		fmt.Printf("%-12s %s\n             %s, Plex %s, machine %s\n", s.Role, s.URL, s.Name, s.Version, s.MachineID)
	}
	if len(runs) > 0 {
		fmt.Println("\nRecent runs:")
		for _, r := range runs {
			mode := "sync"
			if r.DryRun {
				mode = "dry-run"
			}
			fmt.Printf("  #%d %s %s, %d items, %d unmatched\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04"), mode, r.ItemsBulk, r.Unmatched)
		}
	}
	return nil
}
