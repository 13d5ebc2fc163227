package output

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Aman-CERP/launchdex/internal/index"
	"github.com/Aman-CERP/launchdex/internal/model"
	"github.com/Aman-CERP/launchdex/internal/telemetry"
)

// Results renders search results in rank order.
func (w *Writer) Results(results []model.SearchResult) error {
	if w.JSON() {
		if results == nil {
			results = []model.SearchResult{}
		}
		return w.WriteJSON(results)
	}

	if len(results) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("no results"))
		return nil
	}

	for _, r := range results {
		line := w.styles.Name.Render(r.EntrypointName) + "  " +
			w.styles.Plugin.Render(r.PluginName) + " " +
			w.styles.Dim.Render("· "+string(r.EntrypointType))
		if r.HasGenerator() {
			line += w.styles.Dim.Render(" · via " + r.EntrypointGeneratorName)
		}
		if badges := accessories(r.EntrypointAccessories); badges != "" {
			line += "  " + badges
		}
		_, _ = fmt.Fprintln(w.out, line)

		if len(r.EntrypointActions) > 0 {
			_, _ = fmt.Fprintln(w.out, "    "+w.styles.Dim.Render(actions(r.EntrypointActions)))
		}
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(plural(len(results), "result")))
	return nil
}

func accessories(list []model.Accessory) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		switch a.Kind {
		case model.AccessoryText:
			parts = append(parts, "["+a.Text+"]")
		case model.AccessoryIcon:
			parts = append(parts, "<"+a.Icon+">")
		}
	}
	return strings.Join(parts, " ")
}

func actions(list []model.ResultAction) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		s := a.Label
		if a.ActionType == model.ActionView {
			s += " (view)"
		}
		if a.Shortcut != nil {
			s += " " + a.Shortcut.String()
		}
		parts = append(parts, s)
	}
	return "actions: " + strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// PluginRow summarises one loaded plugin.
type PluginRow struct {
	ID          model.PluginID `json:"id"`
	Name        string         `json:"name"`
	Entrypoints int            `json:"entrypoints"`
	Path        string         `json:"path"`
}

// Plugins renders a plugin table.
func (w *Writer) Plugins(rows []PluginRow) error {
	if w.JSON() {
		if rows == nil {
			rows = []PluginRow{}
		}
		return w.WriteJSON(rows)
	}

	tw := tabwriter.NewWriter(w.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, w.styles.Header.Render("ID")+"\t"+w.styles.Header.Render("NAME")+"\t"+
		w.styles.Header.Render("ENTRYPOINTS")+"\t"+w.styles.Header.Render("MANIFEST"))
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Entrypoints, w.styles.Dim.Render(r.Path))
	}
	return tw.Flush()
}

// Stats renders index statistics.
func (w *Writer) Stats(s index.Stats) error {
	if w.JSON() {
		return w.WriteJSON(s)
	}
	_, _ = fmt.Fprintf(w.out, "%s generation %d, %s in %s, %s\n",
		w.styles.Header.Render("index"),
		s.Generation,
		plural(s.Entrypoints, "entrypoint"),
		plural(s.Plugins, "plugin"),
		plural(int(s.Documents), "document"))
	return nil
}

// Check renders a consistency check result.
func (w *Writer) Check(r *index.CheckResult) error {
	if w.JSON() {
		return w.WriteJSON(r)
	}
	if r.OK() {
		w.Success("index consistent: %s checked in generation %d", plural(r.Checked, "document"), r.Generation)
		return nil
	}
	_, _ = fmt.Fprintf(w.out, "%s %s in generation %d\n",
		w.styles.Error.Render("✗"), plural(len(r.Inconsistencies), "inconsistency"), r.Generation)
	for _, issue := range r.Inconsistencies {
		_, _ = fmt.Fprintf(w.out, "  %-16s %s/%s  %s\n",
			issue.Type, issue.PluginID, issue.EntrypointID, w.styles.Dim.Render(issue.Details))
	}
	return nil
}

var bucketOrder = []telemetry.LatencyBucket{
	telemetry.BucketP1, telemetry.BucketP5, telemetry.BucketP20, telemetry.BucketP100, telemetry.BucketSlow,
}

var bucketLabels = map[telemetry.LatencyBucket]string{
	telemetry.BucketP1:   "<1ms",
	telemetry.BucketP5:   "1-5ms",
	telemetry.BucketP20:  "5-20ms",
	telemetry.BucketP100: "20-100ms",
	telemetry.BucketSlow: ">=100ms",
}

// Report renders query metrics.
func (w *Writer) Report(s *telemetry.QueryMetricsSnapshot) error {
	if w.JSON() {
		return w.WriteJSON(s)
	}

	h := w.styles.Header.Render
	_, _ = fmt.Fprintf(w.out, "%s %d (browse %d, filter %d) since %s\n", h("queries"),
		s.TotalQueries,
		s.QueryTypeCounts[telemetry.QueryTypeBrowse],
		s.QueryTypeCounts[telemetry.QueryTypeFilter],
		s.Since.Format("2006-01-02"))

	_, _ = fmt.Fprintln(w.out, h("latency"))
	for _, b := range bucketOrder {
		_, _ = fmt.Fprintf(w.out, "  %-9s %d\n", bucketLabels[b], s.LatencyDistribution[b])
	}

	if len(s.TopTerms) > 0 {
		_, _ = fmt.Fprintln(w.out, h("top terms"))
		for _, tc := range s.TopTerms {
			_, _ = fmt.Fprintf(w.out, "  %-20s %d\n", tc.Term, tc.Count)
		}
	}
	if len(s.ZeroResultQueries) > 0 {
		_, _ = fmt.Fprintln(w.out, h("no results for"))
		for _, q := range s.ZeroResultQueries {
			_, _ = fmt.Fprintf(w.out, "  %q\n", q)
		}
	}
	return nil
}
