package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matijazezelj/tfdescsan/internal/mapping"
)

func loadTable(t *testing.T, tsv string) *mapping.Table {
	t.Helper()
	table, err := mapping.ParseTSV(strings.NewReader(tsv))
	if err != nil {
		t.Fatalf("parsing test mapping: %v", err)
	}
	return table
}

const regionTSV = "region\tRegion to deploy instance in\t(e.g. us-west-2)\n"

func TestApply_Idempotent(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" {
  type        = string
  description = "Region to deploy instance in"
  default     = "us-west-2"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 0 {
		t.Fatalf("discrepancies = %v, want none", r.Discrepancies)
	}
	if r.Changed {
		t.Error("Changed = true for already-correct file")
	}
	if r.Text != input {
		t.Errorf("output differs from input:\n%q\nvs\n%q", r.Text, input)
	}
}

func TestApply_TextMismatch(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" {
	description = "wrong text" # keep this comment
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 {
		t.Fatalf("discrepancies = %d, want 1", len(r.Discrepancies))
	}
	d := r.Discrepancies[0]
	if d.Kind != KindTextMismatch {
		t.Errorf("kind = %s, want %s", d.Kind, KindTextMismatch)
	}
	if d.Variable != "region" || d.Line != 2 {
		t.Errorf("variable/line = %s/%d, want region/2", d.Variable, d.Line)
	}
	if d.Current != "wrong text" || d.Expected != "Region to deploy instance in" {
		t.Errorf("current/expected = %q/%q", d.Current, d.Expected)
	}

	want := `variable "region" {
	description = "Region to deploy instance in" # keep this comment
}
`
	if r.Text != want {
		t.Errorf("patched text:\n%q\nwant:\n%q", r.Text, want)
	}
	if !r.Changed {
		t.Error("Changed = false")
	}
}

func TestApply_RoundTripStable(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" {
  description = "wrong"
}
`

	first := Apply(table, input, mapping.CloudAWS)
	second := Apply(table, first.Text, mapping.CloudAWS)

	if len(second.Discrepancies) != 0 {
		t.Errorf("second run discrepancies = %v, want none", second.Discrepancies)
	}
	if second.Text != first.Text {
		t.Errorf("second run output differs:\n%q\nvs\n%q", second.Text, first.Text)
	}
}

func TestApply_MissingMappingNoMutation(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "unmapped" {
  description = "whatever"
  type        = string
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindMissingMapping {
		t.Fatalf("discrepancies = %v, want one missing-mapping", r.Discrepancies)
	}
	if r.Text != input {
		t.Error("unmapped block was mutated")
	}
	if r.Changed {
		t.Error("Changed = true")
	}
}

func TestApply_CloudAppendix(t *testing.T) {
	table := loadTable(t, regionTSV)

	tests := []struct {
		cloud mapping.Cloud
		want  string
	}{
		{mapping.CloudAWS, "Region to deploy instance in (e.g. us-west-2)"},
		{mapping.CloudGCP, "Region to deploy instance in"},
		{"", "Region to deploy instance in"},
	}

	for _, tt := range tests {
		input := "variable \"region\" {\n  description = \"x\"\n}\n"
		r := Apply(table, input, tt.cloud)
		if len(r.Discrepancies) != 1 {
			t.Fatalf("cloud %q: discrepancies = %d", tt.cloud, len(r.Discrepancies))
		}
		if got := r.Discrepancies[0].Expected; got != tt.want {
			t.Errorf("cloud %q: expected = %q, want %q", tt.cloud, got, tt.want)
		}
		if !strings.Contains(r.Text, "\""+tt.want+"\"") {
			t.Errorf("cloud %q: patched text missing %q", tt.cloud, tt.want)
		}
	}
}

func TestApply_CheckScenario(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" {
  description = "wrong text"
}

variable "unmapped" {
  description = "whatever"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 2 {
		t.Fatalf("discrepancies = %d, want 2", len(r.Discrepancies))
	}
	if r.Discrepancies[0].Kind != KindTextMismatch || r.Discrepancies[0].Variable != "region" {
		t.Errorf("first = %+v, want text-mismatch for region", r.Discrepancies[0])
	}
	if r.Discrepancies[1].Kind != KindMissingMapping || r.Discrepancies[1].Variable != "unmapped" {
		t.Errorf("second = %+v, want missing-mapping for unmapped", r.Discrepancies[1])
	}

	// Only the region description changes; line count is preserved.
	if got, want := len(splitLines(r.Text)), len(splitLines(input)); got != want {
		t.Errorf("line count = %d, want %d", got, want)
	}
	if !strings.Contains(r.Text, `description = "whatever"`) {
		t.Error("unmapped block was mutated")
	}
	if !strings.Contains(r.Text, `description = "Region to deploy instance in"`) {
		t.Error("region description not replaced")
	}
}

func TestApply_InsertMissingDescription(t *testing.T) {
	table := loadTable(t, "zone\tZone to deploy in\n")
	input := `variable "zone" {
    type    = string
    default = "a"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindMissingDescription {
		t.Fatalf("discrepancies = %v, want one missing-description", r.Discrepancies)
	}

	want := `variable "zone" {
    description = "Zone to deploy in"
    type    = string
    default = "a"
}
`
	if r.Text != want {
		t.Errorf("patched text:\n%q\nwant:\n%q", r.Text, want)
	}
}

func TestApply_ExpandEmptyBlock(t *testing.T) {
	table := loadTable(t, "zone\tZone to deploy in\n")
	input := `variable "zone" {}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindMissingDescription {
		t.Fatalf("discrepancies = %v, want one missing-description", r.Discrepancies)
	}

	want := `variable "zone" {
  description = "Zone to deploy in"
}
`
	if r.Text != want {
		t.Errorf("patched text:\n%q\nwant:\n%q", r.Text, want)
	}
}

func TestApply_NestedBlocksIgnored(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" {
  description = "wrong"
  validation {
    condition     = can(regex("^us-", var.region))
    error_message = "Must be a {us} region."
  }
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindTextMismatch {
		t.Fatalf("discrepancies = %v, want one text-mismatch", r.Discrepancies)
	}
	if !strings.Contains(r.Text, `error_message = "Must be a {us} region."`) {
		t.Error("validation block was mutated")
	}
}

func TestApply_HeredocUnsupported(t *testing.T) {
	table := loadTable(t, regionTSV + "zone\tZone to deploy in\n")
	input := `variable "region" {
  description = <<EOT
multi
line
EOT
}

variable "zone" {
  description = "wrong"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 2 {
		t.Fatalf("discrepancies = %d, want 2", len(r.Discrepancies))
	}
	if r.Discrepancies[0].Kind != KindUnsupported || r.Discrepancies[0].Variable != "region" {
		t.Errorf("first = %+v, want unsupported-construct for region", r.Discrepancies[0])
	}
	// Malformed block doesn't stop the scan: zone still gets patched.
	if r.Discrepancies[1].Kind != KindTextMismatch || r.Discrepancies[1].Variable != "zone" {
		t.Errorf("second = %+v, want text-mismatch for zone", r.Discrepancies[1])
	}
	if !strings.Contains(r.Text, "<<EOT") {
		t.Error("heredoc block was mutated")
	}
}

func TestApply_OutputBlocks(t *testing.T) {
	table := loadTable(t, "instance_ip\tPublic IP of the instance\n")
	input := `output "instance_ip" {
  value       = aws_instance.web.public_ip
  description = "old"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindTextMismatch {
		t.Fatalf("discrepancies = %v, want one text-mismatch", r.Discrepancies)
	}
	if !strings.Contains(r.Text, `description = "Public IP of the instance"`) {
		t.Error("output description not replaced")
	}
}

func TestApply_CRLFPreserved(t *testing.T) {
	table := loadTable(t, "zone\tZone to deploy in\n")
	input := "variable \"zone\" {\r\n  type = string\r\n}\r\n"

	r := Apply(table, input, "")
	want := "variable \"zone\" {\r\n  description = \"Zone to deploy in\"\r\n  type = string\r\n}\r\n"
	if r.Text != want {
		t.Errorf("patched text:\n%q\nwant:\n%q", r.Text, want)
	}
}

func TestApply_RedeclaredVariable(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" {
  description = "first"
}
variable "region" {
  description = "second"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 2 {
		t.Fatalf("discrepancies = %d, want 2 (each block handled independently)", len(r.Discrepancies))
	}
	for _, d := range r.Discrepancies {
		if d.Kind != KindTextMismatch {
			t.Errorf("kind = %s, want %s", d.Kind, KindTextMismatch)
		}
	}
	if strings.Count(r.Text, `description = "Region to deploy instance in"`) != 2 {
		t.Error("both blocks should be patched")
	}
}

func TestApply_CommentedHeaderIgnored(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `# variable "region" {
#   description = "wrong"
# }
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 0 {
		t.Errorf("discrepancies = %v, want none", r.Discrepancies)
	}
	if r.Text != input {
		t.Error("commented-out block was mutated")
	}
}

func TestApply_NoTrailingNewline(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" {
  description = "Region to deploy instance in"
}`

	r := Apply(table, input, "")
	if r.Text != input {
		t.Errorf("file without trailing newline changed: %q", r.Text)
	}
}

func TestApply_EscapedQuotes(t *testing.T) {
	table := loadTable(t, "label\tThe \"friendly\" name\n")
	input := `variable "label" {
  description = "old"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 {
		t.Fatalf("discrepancies = %d, want 1", len(r.Discrepancies))
	}
	if !strings.Contains(r.Text, `description = "The \"friendly\" name"`) {
		t.Errorf("escaped payload missing:\n%s", r.Text)
	}

	// And a second pass sees the escaped payload as matching.
	second := Apply(table, r.Text, "")
	if len(second.Discrepancies) != 0 {
		t.Errorf("second pass discrepancies = %v", second.Discrepancies)
	}
}

func TestApply_InlineBlockPatched(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" { description = "old" }
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 {
		t.Fatalf("discrepancies = %d, want 1", len(r.Discrepancies))
	}
	d := r.Discrepancies[0]
	if d.Kind != KindTextMismatch || d.Variable != "region" || d.Line != 1 {
		t.Errorf("discrepancy = %+v, want text-mismatch for region at line 1", d)
	}

	want := `variable "region" { description = "Region to deploy instance in" }
`
	if r.Text != want {
		t.Errorf("patched text:\n%q\nwant:\n%q", r.Text, want)
	}

	second := Apply(table, r.Text, "")
	if len(second.Discrepancies) != 0 || second.Changed {
		t.Errorf("second pass discrepancies = %v", second.Discrepancies)
	}
}

func TestApply_InlineBlockNoDescriptionUnsupported(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region" { type = string }
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindUnsupported {
		t.Fatalf("discrepancies = %v, want one unsupported-construct", r.Discrepancies)
	}
	if r.Text != input {
		t.Error("inline block was mutated")
	}
	if r.Changed {
		t.Error("Changed = true")
	}
}

func TestApply_BraceOnNextLine(t *testing.T) {
	table := loadTable(t, "zone\tZone to deploy in\n")
	input := `variable "zone"
{
  type = string
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindMissingDescription {
		t.Fatalf("discrepancies = %v, want one missing-description", r.Discrepancies)
	}

	want := `variable "zone"
{
  description = "Zone to deploy in"
  type = string
}
`
	if r.Text != want {
		t.Errorf("patched text:\n%q\nwant:\n%q", r.Text, want)
	}
}

func TestApply_UnopenedBlock(t *testing.T) {
	table := loadTable(t, regionTSV + "zone\tZone to deploy in\n")
	input := `variable "region"

variable "zone" {
  description = "wrong"
}
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 2 {
		t.Fatalf("discrepancies = %d, want 2", len(r.Discrepancies))
	}
	if r.Discrepancies[0].Kind != KindUnsupported || r.Discrepancies[0].Variable != "region" || r.Discrepancies[0].Line != 1 {
		t.Errorf("first = %+v, want unsupported-construct for region at line 1", r.Discrepancies[0])
	}
	// The braceless header doesn't swallow the following block.
	if r.Discrepancies[1].Kind != KindTextMismatch || r.Discrepancies[1].Variable != "zone" {
		t.Errorf("second = %+v, want text-mismatch for zone", r.Discrepancies[1])
	}
	if !strings.Contains(r.Text, `description = "Zone to deploy in"`) {
		t.Error("zone description not replaced")
	}
}

func TestApply_UnopenedBlockAtEOF(t *testing.T) {
	table := loadTable(t, regionTSV)
	input := `variable "region"
`

	r := Apply(table, input, "")
	if len(r.Discrepancies) != 1 || r.Discrepancies[0].Kind != KindUnsupported {
		t.Fatalf("discrepancies = %v, want one unsupported-construct", r.Discrepancies)
	}
	if r.Text != input {
		t.Error("braceless header was mutated")
	}
}

func TestSplitQuoted(t *testing.T) {
	tests := []struct {
		in      string
		payload string
		rest    string
		ok      bool
	}{
		{`"hello" # c`, "hello", " # c", true},
		{`"a \"b\" c"`, `a \"b\" c`, "", true},
		{`"unterminated`, "", "", false},
		{`<<EOT`, "", "", false},
		{`"line` + "\n", "", "", false},
	}

	for _, tt := range tests {
		payload, rest, ok := splitQuoted(tt.in)
		if ok != tt.ok || payload != tt.payload || rest != tt.rest {
			t.Errorf("splitQuoted(%q) = %q, %q, %v; want %q, %q, %v",
				tt.in, payload, rest, ok, tt.payload, tt.rest, tt.ok)
		}
	}
}

func TestMaskLine(t *testing.T) {
	tests := []struct {
		in    string
		delta int
	}{
		{`variable "x" {`, 1},
		{`  msg = "has { and } inside"`, 0},
		{`} # closing { comment`, -1},
		{`  attr = "x" // trailing { comment`, 0},
		{`  nested { inner = "}" }`, 0},
	}

	for _, tt := range tests {
		if got := braceDelta(maskLine(tt.in)); got != tt.delta {
			t.Errorf("braceDelta(maskLine(%q)) = %d, want %d", tt.in, got, tt.delta)
		}
	}
}

func TestCountByKind(t *testing.T) {
	ds := []Discrepancy{
		{Kind: KindMissingMapping},
		{Kind: KindTextMismatch},
		{Kind: KindTextMismatch},
	}
	counts := CountByKind(ds)
	if counts[KindTextMismatch] != 2 || counts[KindMissingMapping] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "variables.tf")

	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, "new content\n"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new content\n" {
		t.Errorf("content = %q", data)
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover files in dir: %d entries", len(entries))
	}
}
