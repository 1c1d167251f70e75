package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/babelfeed/internal/feedout"
	"github.com/bryan-buckman/babelfeed/internal/opml"
)

var opmlCmd = &cobra.Command{
	Use:   "opml",
	Short: "Rebuild the translated OPML from already-generated feeds",
	Long: "Scans the output feeds directory for generated XML and writes the OPML\n" +
		"pointing at them under the public base URL, without fetching or translating.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		f, err := os.Open(cfg.OPMLPath)
		if err != nil {
			return fmt.Errorf("open opml: %w", err)
		}
		entries, err := opml.Parse(f)
		f.Close()
		if err != nil {
			return err
		}

		files, err := os.ReadDir(cfg.Output.FeedsDir)
		if err != nil {
			return fmt.Errorf("read feeds dir: %w", err)
		}
		generated := make(map[string]bool)
		for _, fe := range files {
			if !fe.IsDir() && strings.HasSuffix(fe.Name(), ".xml") {
				generated[fe.Name()] = true
			}
		}

		var refs []opml.TranslatedFeedRef
		missing := 0
		for _, entry := range entries {
			name := feedout.Filename(entry.Title, cfg.TargetLang)
			if !generated[name] {
				missing++
				continue
			}
			refs = append(refs, opml.TranslatedFeedRef{
				Title:    entry.Title,
				Filename: name,
				Lang:     cfg.TargetLang,
			})
		}

		doc, err := opml.Rebuild(cfg.Output.CollectionName, cfg.Output.PublicBaseURL, refs)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Output.OPMLPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(cfg.Output.OPMLPath, doc, 0o644); err != nil {
			return fmt.Errorf("write opml: %w", err)
		}

		log.Info("opml rebuilt", "path", cfg.Output.OPMLPath,
			"feeds", len(refs), "missing", missing)
		if missing > 0 {
			log.Warn("some subscriptions have no generated feed yet; run the pipeline first",
				"missing", missing)
		}
		return nil
	},
}
