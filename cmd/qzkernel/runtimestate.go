package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/qorzen/kernel/internal/manager"
)

// runtimeDir is where the running instance's pidfile and status snapshot
// live. It defaults to the user's cache dir so `health`/`status`/`shutdown`
// invoked from a second process can find the first one.
func runtimeDir() (string, error) {
	if v := os.Getenv("QZKERNEL_RUNTIME_DIR"); v != "" {
		return v, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "qzkernel")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func pidFilePath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "qzkernel.pid"), nil
}

func statusFilePath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "status.json"), nil
}

// managerStatus is the JSON-serializable slice of manager.HealthReport the
// running instance periodically writes so a second invocation of
// `qzkernel health|status|manager status` can read it without an IPC
// channel to the live process.
type managerStatus struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	FailureReason    string    `json:"failure_reason,omitempty"`
	LastTransitionAt time.Time `json:"last_transition_at"`
	LastError        string    `json:"last_error,omitempty"`
}

type statusSnapshot struct {
	PID         int             `json:"pid"`
	StartedAt   time.Time       `json:"started_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Healthy     bool            `json:"healthy"`
	Managers    []managerStatus `json:"managers"`
	PluginCount int             `json:"plugin_count"`
}

func writePIDFile() error {
	path, err := pidFilePath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile() {
	path, err := pidFilePath()
	if err != nil {
		return
	}
	_ = os.Remove(path)
}

func readPID() (int, error) {
	path, err := pidFilePath()
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

func writeStatusSnapshot(snap statusSnapshot) error {
	path, err := statusFilePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readStatusSnapshot() (statusSnapshot, error) {
	var snap statusSnapshot
	path, err := statusFilePath()
	if err != nil {
		return snap, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	err = json.Unmarshal(data, &snap)
	return snap, err
}

func removeStatusSnapshot() {
	path, err := statusFilePath()
	if err != nil {
		return
	}
	_ = os.Remove(path)
}

func toManagerStatuses(sup *manager.Supervisor) []managerStatus {
	names := sup.Names()
	out := make([]managerStatus, 0, len(names))
	for _, name := range names {
		report, err := sup.Status(name)
		if err != nil {
			continue
		}
		entry := managerStatus{
			Name:             report.Name,
			State:            string(report.State),
			FailureReason:    string(report.FailureReason),
			LastTransitionAt: report.LastTransitionAt,
		}
		if report.LastError != nil {
			entry.LastError = report.LastError.Error()
		}
		out = append(out, entry)
	}
	return out
}
