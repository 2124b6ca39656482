package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendWritesOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rounds", "arb_monitor.jsonl")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	type row struct {
		Signal string  `json:"signal"`
		Edge   float64 `json:"best_edge"`
	}

	rows := []row{
		{Signal: "NO_EDGE", Edge: 0.001},
		{Signal: "ARBITRAGE", Edge: 0.02},
		{Signal: "ERROR"},
	}
	for _, r := range rows {
		if err := j.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if j.Count() != 3 {
		t.Errorf("Count = %d, want 3", j.Count())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening journal file: %v", err)
	}
	defer f.Close()

	var got []row
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r row
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("line %d not valid JSON: %v", len(got)+1, err)
		}
		got = append(got, r)
	}

	if len(got) != len(rows) {
		t.Fatalf("got %d lines, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], rows[i])
		}
	}
}

func TestOpenAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	j1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j1.Append(map[string]string{"run": "first"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	j1.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := j2.Append(map[string]string{"run": "second"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	j2.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("file has %d lines, want 2 (append must not truncate)", lines)
	}
}
