package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/idilsaglam/todochain/internal/client"
	"github.com/idilsaglam/todochain/internal/program"
	"github.com/idilsaglam/todochain/internal/ui"
)

const maxTitleWidth = 80

func listLines(items []program.TodoItem, group bool) []string {
	t := ui.Current()
	incomplete, completed := client.Split(items)
	d, p := len(completed), len(incomplete)

	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(items),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, t.Muted.Render(ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, "")

	if group {
		lines = append(lines, groupLines(incomplete, completed)...)
	} else {
		lines = append(lines, flatLines(items)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `todo add \"Buy milk\"`"))
	return lines
}

// flatLines shows each todo with its ledger index, which is what done/rm take.
func flatLines(items []program.TodoItem) []string {
	t := ui.Current()
	if len(items) == 0 {
		return []string{t.Muted.Render("no todos")}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		idx := fmt.Sprintf("%3d.", it.Index)
		box := t.Muted.Render(t.BoxUnchecked)
		if it.Completed {
			box = t.Success.Render(t.BoxChecked)
		}
		out = append(out, fmt.Sprintf("%s %s %s",
			t.Muted.Render(idx), box, ui.Truncate(it.Content, maxTitleWidth)))
	}
	return out
}

func groupLines(incomplete, completed []program.TodoItem) []string {
	t := ui.Current()
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(incomplete) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(incomplete)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(completed) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(completed)...)
	}
	return lines
}

// recordView is what `show` and `profile` print.
type recordView struct {
	Address  string               `json:"address" yaml:"address"`
	Nonce    uint8                `json:"nonce" yaml:"nonce"`
	Lamports uint64               `json:"lamports" yaml:"lamports"`
	Profile  *program.UserProfile `json:"profile,omitempty" yaml:"profile,omitempty"`
	Todo     *program.TodoItem    `json:"todo,omitempty" yaml:"todo,omitempty"`
}

const (
	formatText = "text"
	formatYAML = "yaml"
	formatJSON = "json"
)

func validFormat(f string) error {
	switch f {
	case formatText, formatYAML, formatJSON:
		return nil
	}
	return usageErrorf("unknown output format %q (want text, yaml or json)", f)
}

func writeRecord(w io.Writer, format string, v recordView) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	t := ui.Current()
	lines := []string{
		t.Muted.Render("address  ") + v.Address,
		t.Muted.Render("nonce    ") + fmt.Sprint(v.Nonce),
		t.Muted.Render("lamports ") + fmt.Sprint(v.Lamports),
	}
	if p := v.Profile; p != nil {
		lines = append(lines,
			t.Muted.Render("owner    ")+p.Owner.String(),
			t.Muted.Render("next     ")+fmt.Sprint(p.NextIndex),
			t.Muted.Render("live     ")+fmt.Sprint(p.LiveCount),
		)
	}
	if it := v.Todo; it != nil {
		state := t.Pending.Render("pending")
		if it.Completed {
			state = t.Success.Render("done")
		}
		lines = append(lines,
			t.Muted.Render("owner    ")+it.Owner.String(),
			t.Muted.Render("index    ")+fmt.Sprint(it.Index),
			t.Muted.Render("content  ")+it.Content,
			t.Muted.Render("status   ")+state,
		)
	}
	_, err := fmt.Fprintln(w, ui.RenderPanel([]string{strings.Join(lines, "\n")}))
	return err
}
