package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"timetable/internal/core"
)

// execute runs the command with stdout and stderr combined. Dates are read in
// UTC unless the arguments name a zone.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(t, &out, &out, args...)
	return out.String(), err
}

func executeStreams(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(t, &stdout, &stderr, args...)
	return stdout.String(), stderr.String(), err
}

func run(t *testing.T, stdout, stderr *bytes.Buffer, args ...string) error {
	t.Helper()
	if !slices.Contains(args, "--tz") {
		args = append(args, "--tz", "UTC")
	}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"show", "check", "lectures"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("missing %s command: %v", name, err)
		}
	}
	for _, flag := range []string{"seed", "same-day", "tz", "verbose", "json", "metrics", "metrics-format", "trace"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("missing --%s flag", flag)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("dev")
	SetVersion("")
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "1.2.3" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestShowDefaultSeed(t *testing.T) {
	out, err := execute(t, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Schools:", "Mobile Design School", "Purple Llama", "Development 5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShowJSON(t *testing.T) {
	out, err := execute(t, "show", "--json")
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var dump timetableDump
	if err := json.Unmarshal([]byte(out), &dump); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(dump.Schools) != 3 || len(dump.Classrooms) != 7 || len(dump.Lectures) != 5 {
		t.Fatalf("unexpected dump sizes: %d %d %d", len(dump.Schools), len(dump.Classrooms), len(dump.Lectures))
	}
	if dump.Lectures[0].Name != "Development 1" {
		t.Fatalf("lectures must be ordered by start time: %+v", dump.Lectures[0])
	}
}

func TestShowMetrics(t *testing.T) {
	out, err := execute(t, "show", "--metrics")
	if err != nil {
		t.Fatalf("show --metrics: %v", err)
	}
	if !strings.Contains(out, `timetable_operations_total{operation="create_lecture",status="success"} 5`) {
		t.Fatalf("metrics missing from output:\n%s", out)
	}
}

func TestShowExpvarMetrics(t *testing.T) {
	out, err := execute(t, "show", "--metrics", "--metrics-format", "expvar", "--json")
	if err != nil {
		t.Fatalf("show expvar: %v", err)
	}
	dec := json.NewDecoder(strings.NewReader(out))
	var dump timetableDump
	if err := dec.Decode(&dump); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	var metrics map[string]float64
	if err := dec.Decode(&metrics); err != nil {
		t.Fatalf("decode expvar metrics: %v\n%s", err, out)
	}
	if metrics["create_lecture.success"] != 5 || metrics["create_school.success"] != 3 {
		t.Fatalf("unexpected expvar metrics %v", metrics)
	}
	if strings.Contains(out, "timetable_operations_total") {
		t.Fatalf("expvar format must not print prometheus text:\n%s", out)
	}
}

func TestUnknownMetricsFormat(t *testing.T) {
	if _, err := execute(t, "show", "--metrics-format", "statsd"); err == nil || !strings.Contains(err.Error(), "statsd") {
		t.Fatalf("expected metrics format error, got %v", err)
	}
}

func TestTraceFlagWritesSpansToStderr(t *testing.T) {
	seed := writeSeed(t, `schools:
  - {name: A, amount: 10}
  - {name: "", amount: 10}
classrooms:
  - {name: Room, capacity: 20}
`)
	stdout, stderr, err := executeStreams(t, "check", "--seed", seed, "--trace")
	if err == nil {
		t.Fatalf("expected rejection error")
	}
	if strings.Contains(stdout, `"op"`) {
		t.Fatalf("spans must not reach stdout:\n%s", stdout)
	}
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 spans, got %d:\n%s", len(lines), stderr)
	}
	var spans []core.TraceLine
	for _, line := range lines {
		var span core.TraceLine
		if err := json.Unmarshal([]byte(line), &span); err != nil {
			t.Fatalf("decode span %q: %v", line, err)
		}
		spans = append(spans, span)
	}
	if spans[0].Operation != "create_school" || spans[0].Status != "success" {
		t.Fatalf("unexpected first span %+v", spans[0])
	}
	if spans[1].Status != "error" || spans[1].Kind != "invalid_argument" {
		t.Fatalf("unexpected rejected span %+v", spans[1])
	}
	if spans[2].Operation != "create_classroom" {
		t.Fatalf("unexpected last span %+v", spans[2])
	}

	if _, stderr, err := executeStreams(t, "show"); err != nil || stderr != "" {
		t.Fatalf("tracing is off by default: err=%v stderr=%q", err, stderr)
	}
}

func TestTimeZoneDecidesSameDay(t *testing.T) {
	// 20:00Z-22:00Z is 23:00-01:00 in Moscow.
	seed := writeSeed(t, `schools:
  - {name: A, amount: 1}
classrooms:
  - {name: Room, capacity: 1}
lectures:
  - name: Evening
    lecturer: X
    time: {start: 2017-02-01T20:00:00Z, end: 2017-02-01T22:00:00Z}
    classroom_id: 1
    school_ids: [1]
`)
	if _, err := execute(t, "check", "--seed", seed, "--tz", "UTC"); err != nil {
		t.Fatalf("utc: %v", err)
	}
	out, err := execute(t, "check", "--seed", seed, "--tz", "Europe/Moscow")
	if err == nil || !strings.Contains(out, "time_range_invalid") {
		t.Fatalf("expected the lecture to cross midnight in Moscow, got %v:\n%s", err, out)
	}
	if _, err := execute(t, "show", "--tz", "Mars/Olympus"); err == nil || !strings.Contains(err.Error(), "Mars/Olympus") {
		t.Fatalf("expected time zone error, got %v", err)
	}
}

func TestCheckReportsRejectedDescriptors(t *testing.T) {
	seed := writeSeed(t, `schools:
  - name: A
    amount: 10
classrooms:
  - name: Room
    capacity: 20
lectures:
  - name: First
    lecturer: X
    time: {start: 2017-02-01T10:00:00Z, end: 2017-02-01T12:00:00Z}
    classroom_id: 1
    school_ids: [1]
  - name: Clash
    lecturer: Y
    time: {start: 2017-02-01T11:00:00Z, end: 2017-02-01T13:00:00Z}
    classroom_id: 1
    school_ids: [1]
`)
	out, err := execute(t, "check", "--seed", seed)
	if err == nil || err.Error() != "1 descriptors rejected" {
		t.Fatalf("expected rejection error, got %v", err)
	}
	if !strings.Contains(out, `rejected lecture #1 "Clash": room_conflict`) {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = execute(t, "check", "--seed", seed, "--json")
	if err == nil {
		t.Fatalf("expected rejection error")
	}
	var report checkReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if report.Lectures != 1 || len(report.Failures) != 1 || report.Failures[0].Kind != "room_conflict" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCheckDefaultSeedPasses(t *testing.T) {
	out, err := execute(t, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "created 3 schools, 7 classrooms, 5 lectures") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLecturesCommand(t *testing.T) {
	out, err := execute(t, "lectures", "--school", "2")
	if err != nil {
		t.Fatalf("lectures: %v", err)
	}
	if n := strings.Count(out, "\n"); n != 4 {
		t.Fatalf("expected 4 lectures for school 2, got %d:\n%s", n, out)
	}

	out, err = execute(t, "lectures", "--classroom", "2", "--from", "2017-02-01T00:00:00Z", "--to", "2017-02-03T23:59:00Z")
	if err != nil {
		t.Fatalf("lectures interval: %v", err)
	}
	if !strings.Contains(out, "Development 1") || !strings.Contains(out, "Development 2") || strings.Contains(out, "Development 4") {
		t.Fatalf("unexpected interval output:\n%s", out)
	}

	out, err = execute(t, "lectures", "--classroom", "1")
	if err != nil || strings.TrimSpace(out) != "no lectures" {
		t.Fatalf("expected empty listing, got %q %v", out, err)
	}
}

func TestLecturesCommandArguments(t *testing.T) {
	cases := [][]string{
		{"lectures"},
		{"lectures", "--school", "1", "--classroom", "1"},
		{"lectures", "--school", "1", "--from", "2017-02-01T00:00:00Z"},
		{"lectures", "--school", "1", "--from", "yesterday", "--to", "2017-02-01T00:00:00Z"},
		{"lectures", "--school", "9"},
	}
	for _, args := range cases {
		if _, err := execute(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestInvalidSameDayPolicy(t *testing.T) {
	if _, err := execute(t, "show", "--same-day", "lunar"); err == nil || !strings.Contains(err.Error(), "lunar") {
		t.Fatalf("expected policy error, got %v", err)
	}
}

func TestWeekdayMonthPolicyFlag(t *testing.T) {
	seed := writeSeed(t, `schools:
  - {name: A, amount: 1}
classrooms:
  - {name: Room, capacity: 1}
lectures:
  - name: Week
    lecturer: X
    time: {start: 2017-02-01T10:00:00Z, end: 2017-02-08T11:00:00Z}
    classroom_id: 1
    school_ids: [1]
`)
	if _, err := execute(t, "check", "--seed", seed); err == nil {
		t.Fatalf("calendar-date must reject a week-long lecture")
	}
	if _, err := execute(t, "check", "--seed", seed, "--same-day", "weekday-month"); err != nil {
		t.Fatalf("weekday-month: %v", err)
	}
}
