package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/Provisor/internal/domain"
)

const sampleConfig = `
jobs:
  ingest:
    name: Ingest data
    script: ingest.py
    schedule: "0 6 * * *"
    cpu: 0.5
    memory: 2
  train:
    name: Train model
    script: train.py
    kernel: python3
    parent: ingest
    cpu: 2
    memory: 4
    nvidia_gpu: 1
    timeout: 7200
    arguments: "--epochs 10"
    environment:
      MODE: full
  report:
    name: Send report
    script: report.r
    kernel: r
    parent: train
    attachments:
      - metrics.csv
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(cfg.Jobs))
	}

	train := cfg.Get("train")
	if train == nil {
		t.Fatal("job train not found")
	}
	if train.Name != "Train model" {
		t.Errorf("expected name 'Train model', got %q", train.Name)
	}
	if train.Parent != "ingest" {
		t.Errorf("expected parent ingest, got %q", train.Parent)
	}
	if train.NvidiaGPU != 1 {
		t.Errorf("expected 1 gpu, got %d", train.NvidiaGPU)
	}
	if train.TimeoutSec != 7200 {
		t.Errorf("expected timeout 7200, got %d", train.TimeoutSec)
	}
	if train.Arguments != "--epochs 10" {
		t.Errorf("unexpected arguments: %q", train.Arguments)
	}
	if train.Environment["MODE"] != "full" {
		t.Errorf("unexpected environment: %v", train.Environment)
	}

	report := cfg.Get("report")
	if report.Kernel != domain.KernelR {
		t.Errorf("expected kernel r, got %q", report.Kernel)
	}
	if len(report.Attachments) != 1 || report.Attachments[0] != "metrics.csv" {
		t.Errorf("unexpected attachments: %v", report.Attachments)
	}
}

func TestParse_DeclarationOrder(t *testing.T) {
	// Порядок ключей в YAML должен сохраниться.
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"ingest", "train", "report"}
	keys := cfg.Keys()
	for i, key := range keys {
		if key != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], key)
		}
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
jobs:
  minimal:
    name: Minimal
    script: minimal.py
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := cfg.Get("minimal")
	if job.Kernel != domain.DefaultKernel {
		t.Errorf("expected default kernel, got %q", job.Kernel)
	}
	if job.CPU != domain.DefaultCPU {
		t.Errorf("expected default cpu, got %v", job.CPU)
	}
	if job.Memory != domain.DefaultMemory {
		t.Errorf("expected default memory, got %v", job.Memory)
	}
	if job.TimeoutSec != domain.DefaultTimeoutSec {
		t.Errorf("expected default timeout, got %d", job.TimeoutSec)
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("DATA_BUCKET", "s3://models")

	cfg, err := Parse([]byte(`
jobs:
  ingest:
    name: Ingest
    script: ingest.py
    environment:
      BUCKET: ${DATA_BUCKET}/raw
      MISSING: $NO_SUCH_VAR_SET
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env := cfg.Get("ingest").Environment
	if env["BUCKET"] != "s3://models/raw" {
		t.Errorf("expected expanded bucket, got %q", env["BUCKET"])
	}
	// Несуществующая переменная разворачивается в пустую строку
	if env["MISSING"] != "" {
		t.Errorf("expected empty value, got %q", env["MISSING"])
	}
}

func TestParse_MissingJobsSection(t *testing.T) {
	cfg, err := Parse([]byte("other: value\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(cfg.Jobs))
	}
}

func TestParse_DuplicateJobKey(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  ingest:
    name: Ingest
    script: ingest.py
  ingest:
    name: Ingest again
    script: ingest2.py
`))
	if err == nil {
		t.Fatal("expected error for duplicate job key")
	}
	if !strings.Contains(err.Error(), "duplicate job key") {
		t.Errorf("expected duplicate key error, got %v", err)
	}
}

func TestParse_JobsNotMapping(t *testing.T) {
	_, err := Parse([]byte("jobs:\n  - name: listed\n"))
	if err == nil {
		t.Error("expected error for jobs as a sequence")
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Jobs) != 3 {
		t.Errorf("expected 3 jobs, got %d", len(cfg.Jobs))
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoad_DefaultPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "jobs.yaml"), []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Jobs) != 3 {
		t.Errorf("expected 3 jobs, got %d", len(cfg.Jobs))
	}
}

func TestLoad_NoDefaultPath(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load("")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

// chdir changes into dir for the duration of the test, matching the
// behavior of testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
