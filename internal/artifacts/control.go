package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
)

// ControlEntry records one paragraph's bookkeeping in the control ledger.
// JSON keys match the ledger written by the legacy tooling.
type ControlEntry struct {
	Index             int     `json:"indice"`
	Text              string  `json:"texto"`
	Image             string  `json:"imagen"`
	EstimatedDuration float64 `json:"duracion_estimada"`
}

// WriteControl persists the paragraph control ledger as indented JSON.
func (l Layout) WriteControl(entries []ControlEntry) error {
	if err := l.EnsureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal control entries: %w", err)
	}
	return os.WriteFile(l.ControlFile(), append(data, '\n'), 0o644)
}

// ReadControl loads the paragraph control ledger.
func (l Layout) ReadControl() ([]ControlEntry, error) {
	data, err := os.ReadFile(l.ControlFile())
	if err != nil {
		return nil, err
	}
	var entries []ControlEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse control file: %w", err)
	}
	return entries, nil
}
