package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/matijazezelj/tfdescsan/internal/patch"
	"gopkg.in/yaml.v3"
)

// Report is a discrepancy summary for one declaration file.
type Report struct {
	File          string              `json:"file" yaml:"file"`
	Cloud         string              `json:"cloud,omitempty" yaml:"cloud,omitempty"`
	Count         int                 `json:"count" yaml:"count"`
	Discrepancies []patch.Discrepancy `json:"discrepancies" yaml:"discrepancies"`
}

// New builds a Report from a patch result.
func New(file, cloud string, ds []patch.Discrepancy) Report {
	if ds == nil {
		ds = []patch.Discrepancy{}
	}
	return Report{File: file, Cloud: cloud, Count: len(ds), Discrepancies: ds}
}

// Render writes the report in the requested format: text, json, or yaml.
func Render(w io.Writer, r Report, format string) error {
	switch format {
	case "text":
		return renderText(w, r)
	case "json":
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(r)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported format %q (use: text, json, yaml)", format)
	}
}

func renderText(w io.Writer, r Report) error {
	if len(r.Discrepancies) == 0 {
		_, err := fmt.Fprintf(w, "%s: all descriptions match\n", r.File)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VARIABLE\tLINE\tKIND\tDETAIL")
	for _, d := range r.Discrepancies {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", d.Variable, d.Line, d.Kind, detail(d))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s: %d discrepancies\n", r.File, len(r.Discrepancies))
	return err
}

func detail(d patch.Discrepancy) string {
	switch d.Kind {
	case patch.KindTextMismatch:
		return fmt.Sprintf("%q != %q", d.Current, d.Expected)
	case patch.KindMissingMapping:
		return "no mapping entry"
	case patch.KindMissingDescription:
		return fmt.Sprintf("expected %q", d.Expected)
	case patch.KindUnsupported:
		return "not a single-line quoted string"
	default:
		return ""
	}
}
