package inventory

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/doc-harvest/harvest/pkg/models"
)

// WriteReport renders a run report: the summary table, a status
// breakdown, and the list of entities that produced no stored artifact.
func WriteReport(w io.Writer, sum models.RunSummary, records []models.InventoryRecord) error {
	md := markdown.NewMarkdown(w)

	started, elapsed := "-", "-"
	if !sum.StartedAt.IsZero() {
		started = sum.StartedAt.Format("2006-01-02 15:04:05 MST")
		elapsed = sum.Elapsed.Round(time.Second).String()
	}

	md.H1("Harvest Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", sum.StartURL},
			{"Started", started},
			{"Elapsed", elapsed},
			{"Index pages walked", strconv.Itoa(sum.PagesWalked)},
			{"Entities processed", strconv.Itoa(sum.EntitiesNew)},
			{"Entities skipped (already seen)", strconv.Itoa(sum.EntitiesSkip)},
			{"Inventory records", strconv.Itoa(sum.Records)},
			{"Stopped because", sum.StopReason},
		},
	})
	md.PlainText("")

	md.H2("Artifacts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Documents downloaded", strconv.Itoa(sum.Downloaded)},
			{"Text captures", strconv.Itoa(sum.TextCaptured)},
			{"Failed attempts", strconv.Itoa(sum.Failed)},
		},
	})
	md.PlainText("")

	writeStatusBreakdown(md, records)
	writeUnsaved(md, records)

	return md.Build()
}

func writeStatusBreakdown(md *markdown.Markdown, records []models.InventoryRecord) {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[string(rec.Status)]++
	}
	if len(counts) == 0 {
		return
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([][]string, len(statuses))
	for i, status := range statuses {
		rows[i] = []string{status, strconv.Itoa(counts[status])}
	}

	md.H2("Status Breakdown")
	md.PlainText("")
	md.Table(markdown.TableSet{Header: []string{"Status", "Count"}, Rows: rows})
	md.PlainText("")
}

// writeUnsaved lists entities for which no attempt stored anything, the
// ones worth a manual look after the run.
func writeUnsaved(md *markdown.Markdown, records []models.InventoryRecord) {
	saved := make(map[models.EntityID]bool)
	detail := make(map[models.EntityID]string)
	var order []models.EntityID
	for _, rec := range records {
		if _, known := saved[rec.EntityID]; !known {
			order = append(order, rec.EntityID)
		}
		saved[rec.EntityID] = saved[rec.EntityID] || rec.Saved()
		detail[rec.EntityID] = rec.DetailURL
	}

	var items []string
	for _, id := range order {
		if !saved[id] {
			items = append(items, fmt.Sprintf("`%s` <%s>", id, detail[id]))
		}
	}
	if len(items) == 0 {
		return
	}

	md.H2("Entities Without Artifacts")
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}
