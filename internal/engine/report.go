package engine

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/axgtan77/anson-catalog-automation/internal/cli"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// Report renders the human-readable change report for a run. The report is
// generated from the changeset alone, so dry-run and commit produce
// identical output for the same inputs.
func Report(result *Result) string {
	var b strings.Builder
	summary := result.Audit.Summary

	mode := "commit"
	if result.Audit.DryRun {
		mode = "dry-run"
	}
	b.WriteString(cli.TitleStyle.Render(fmt.Sprintf("Price master sync (%s)", mode)))
	b.WriteString("\n")

	for _, d := range sortedDecisions(result.Changeset) {
		switch {
		case d.New:
			b.WriteString(cli.FormatSuccess(fmt.Sprintf("NEW  %s  %s  %s",
				d.Key, d.Candidate.Description, renderPrice(d.Candidate.PriceRetail))))
			b.WriteString("\n")

		case d.PriceChanged:
			b.WriteString(cli.FormatInfo(fmt.Sprintf("PRICE  %s  %s",
				d.Key, renderPriceChange(d.OldPrice, d.Candidate))))
			b.WriteString("\n")
		}

		if d.DescriptionChanged {
			b.WriteString(cli.FormatWarning(fmt.Sprintf("DESC  %s  %q -> %q  (flagged for review)",
				d.Key, d.OldDescription, d.Candidate.Description)))
			b.WriteString("\n")
		}
		if d.Reactivated {
			b.WriteString(cli.FormatInfo(fmt.Sprintf("REACTIVATED  %s", d.Key)))
			b.WriteString("\n")
		}
	}

	deactivate := append([]string(nil), result.Changeset.Deactivate...)
	sort.Strings(deactivate)
	for _, key := range deactivate {
		b.WriteString(cli.SubtleStyle.Render(fmt.Sprintf("DEACTIVATED  %s", key)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(cli.BoldStyle.Render(fmt.Sprintf(
		"processed %d | new %d | price %d | flagged %d | reactivated %d | deactivated %d | unchanged %d | skipped %d",
		summary.Processed, summary.Added, summary.PriceChanged,
		summary.DescriptionFlagged, summary.Reactivated, summary.Deactivated,
		summary.Unchanged, summary.SkippedInvalid)))
	b.WriteString("\n")

	if len(summary.SkipReasons) > 0 {
		reasons := make([]string, 0, len(summary.SkipReasons))
		for reason := range summary.SkipReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			b.WriteString(cli.SubtleStyle.Render(fmt.Sprintf("  skipped (%s): %d", reason, summary.SkipReasons[reason])))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// WriteDetailLog writes the plain-text change log kept alongside each run,
// one line per change, grep-friendly.
func WriteDetailLog(w io.Writer, result *Result) error {
	for _, d := range sortedDecisions(result.Changeset) {
		var err error
		switch {
		case d.New:
			_, err = fmt.Fprintf(w, "NEW\t%s\t%s\t%s\n",
				d.Key, d.Candidate.Description, renderPrice(d.Candidate.PriceRetail))
		case d.PriceChanged:
			_, err = fmt.Fprintf(w, "PRICE\t%s\t%s\n",
				d.Key, renderPriceChange(d.OldPrice, d.Candidate))
		}
		if err != nil {
			return err
		}
		if d.DescriptionChanged {
			if _, err := fmt.Fprintf(w, "DESC\t%s\t%q\t%q\n",
				d.Key, d.OldDescription, d.Candidate.Description); err != nil {
				return err
			}
		}
		if d.Reactivated {
			if _, err := fmt.Fprintf(w, "REACTIVATED\t%s\n", d.Key); err != nil {
				return err
			}
		}
	}

	deactivate := append([]string(nil), result.Changeset.Deactivate...)
	sort.Strings(deactivate)
	for _, key := range deactivate {
		if _, err := fmt.Fprintf(w, "DEACTIVATED\t%s\n", key); err != nil {
			return err
		}
	}
	return nil
}

func sortedDecisions(cs *model.Changeset) []model.Decision {
	keys := make([]string, 0, len(cs.Decisions))
	for key := range cs.Decisions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	decisions := make([]model.Decision, 0, len(keys))
	for _, key := range keys {
		decisions = append(decisions, cs.Decisions[key])
	}
	return decisions
}

func renderPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

// renderPriceChange shows the retail tier movement with a percentage
// delta, falling back to whichever tier is present when retail is not.
func renderPriceChange(old *model.PriceRecord, c *model.ProductCandidate) string {
	var oldRetail *float64
	if old != nil {
		oldRetail = old.PriceRetail
	}

	if oldRetail != nil && c.PriceRetail != nil && *oldRetail != 0 {
		delta := (*c.PriceRetail - *oldRetail) / *oldRetail * 100
		return fmt.Sprintf("%.2f -> %.2f (%+.1f%%)", *oldRetail, *c.PriceRetail, delta)
	}
	return fmt.Sprintf("%s -> %s", renderPrice(oldRetail), renderPrice(c.PriceRetail))
}
