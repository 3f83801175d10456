package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// onePagePDF writes a single-page PDF whose content stream shows text.
func onePagePDF(t *testing.T, dir, text string) string {
	t.Helper()

	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	pdf := onePagePDF(t, dir, "Национальное бюро кредитных историй НБКИ nbki.ru Кредитный отчет")

	out, err := execute(t, "classify", pdf)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	var got classification
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Format != "nbki" {
		t.Errorf("format: got %s, want nbki", got.Format)
	}
	if got.Pages != 1 {
		t.Errorf("pages: got %d, want 1", got.Pages)
	}
}

func TestClassifyCommandMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := execute(t, "classify", "absent.pdf"); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestMigrateCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CREDITREAD_STORE_DRIVER", "sqlite")

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"migrate", "version"}, "no migrations applied"},
		{[]string{"migrate", "up"}, "migrations applied"},
		{[]string{"migrate", "version"}, "version 1 (dirty: false)"},
		{[]string{"migrate", "down"}, "migrations reverted"},
	}

	for _, step := range steps {
		out, err := execute(t, step.args...)
		if err != nil {
			t.Fatalf("%v: %v", step.args, err)
		}
		if !strings.Contains(out, step.want) {
			t.Errorf("%v: got %q, want %q", step.args, out, step.want)
		}
	}
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CREDITREAD_STORE_DRIVER", "memory")

	_, err := execute(t, "migrate", "up")
	if err == nil || !strings.Contains(err.Error(), "has no schema") {
		t.Errorf("migrate up: got %v, want a no schema error", err)
	}
}

func TestMigrateStepsRejectsZero(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CREDITREAD_STORE_DRIVER", "sqlite")

	if _, err := execute(t, "migrate", "steps", "0"); err == nil {
		t.Fatal("expected error for zero steps")
	}
}
