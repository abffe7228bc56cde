// Package incident records standing operator alerts.
//
// A continuity alarm is raised when a failed rotation could not be rolled
// back: the system can no longer guarantee which credential version is
// active, and the condition outlives the request that caused it. Alarms are
// written as JSON reports under the alarm directory and mirrored into an
// append-only audit log file, and they stay open until an operator resolves
// them explicitly.
package incident

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/credvault/pkg/secretref"
)

const (
	alarmDirName = "alarms"
	auditLogName = "audit.log"
)

// Alarm is one standing operator alert.
type Alarm struct {
	ID       string          `json:"id"`
	RaisedAt time.Time       `json:"raised_at"`
	Provider string          `json:"provider"`
	Scope    secretref.Scope `json:"scope"`
	Name     string          `json:"name"`
	Reason   string          `json:"reason"`
	Severity string          `json:"severity"`

	Status     string     `json:"status"` // open, resolved
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Manager persists alarms under a base directory.
type Manager struct {
	alarmDir  string
	auditPath string
}

// NewManager creates a manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = "."
	}
	return &Manager{
		alarmDir:  filepath.Join(baseDir, alarmDirName),
		auditPath: filepath.Join(baseDir, auditLogName),
	}
}

// RaiseContinuityAlarm records that the active credential version for a
// provider is uncertain after a failed rollback.
func (m *Manager) RaiseContinuityAlarm(provider string, scope secretref.Scope, name, reason string) (*Alarm, error) {
	if err := os.MkdirAll(m.alarmDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating alarm directory: %w", err)
	}

	alarm := &Alarm{
		ID:       fmt.Sprintf("CONT-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8]),
		RaisedAt: time.Now().UTC(),
		Provider: provider,
		Scope:    scope,
		Name:     name,
		Reason:   reason,
		Severity: "critical",
		Status:   "open",
	}

	if err := m.save(alarm); err != nil {
		return nil, err
	}
	if err := m.logToAudit(alarm, "continuity_alarm_raised"); err != nil {
		// The alarm file is the source of truth; a missing audit line is
		// logged by the caller, not fatal here.
		fmt.Fprintf(os.Stderr, "Warning: failed to write alarm audit log: %v\n", err)
	}
	return alarm, nil
}

// Resolve closes an open alarm with operator notes.
func (m *Manager) Resolve(id, notes string) error {
	alarm, err := m.Get(id)
	if err != nil {
		return err
	}
	if alarm.Status == "resolved" {
		return fmt.Errorf("alarm %s is already resolved", id)
	}

	now := time.Now().UTC()
	alarm.Status = "resolved"
	alarm.ResolvedAt = &now
	alarm.Notes = notes

	if err := m.save(alarm); err != nil {
		return err
	}
	return m.logToAudit(alarm, "continuity_alarm_resolved")
}

// Get loads an alarm by id.
func (m *Manager) Get(id string) (*Alarm, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("alarm %s not found", id)
		}
		return nil, fmt.Errorf("reading alarm %s: %w", id, err)
	}
	var alarm Alarm
	if err := json.Unmarshal(data, &alarm); err != nil {
		return nil, fmt.Errorf("parsing alarm %s: %w", id, err)
	}
	return &alarm, nil
}

// List returns all alarms, newest first.
func (m *Manager) List() ([]*Alarm, error) {
	entries, err := os.ReadDir(m.alarmDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading alarm directory: %w", err)
	}

	var alarms []*Alarm
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		alarm, err := m.Get(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		alarms = append(alarms, alarm)
	}

	sort.Slice(alarms, func(i, j int) bool { return alarms[i].RaisedAt.After(alarms[j].RaisedAt) })
	return alarms, nil
}

// Open returns only unresolved alarms.
func (m *Manager) Open() ([]*Alarm, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	var open []*Alarm
	for _, alarm := range all {
		if alarm.Status == "open" {
			open = append(open, alarm)
		}
	}
	return open, nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.alarmDir, id+".json")
}

func (m *Manager) save(alarm *Alarm) error {
	data, err := json.MarshalIndent(alarm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling alarm: %w", err)
	}
	if err := os.WriteFile(m.path(alarm.ID), data, 0o600); err != nil {
		return fmt.Errorf("writing alarm file: %w", err)
	}
	return nil
}

func (m *Manager) logToAudit(alarm *Alarm, event string) error {
	f, err := os.OpenFile(m.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s id=%s provider=%s scope=%s name=%s\n",
		time.Now().UTC().Format(time.RFC3339), event, alarm.ID, alarm.Provider, alarm.Scope, alarm.Name)
	_, err = f.WriteString(line)
	return err
}
