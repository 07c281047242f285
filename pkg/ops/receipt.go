package ops

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"
)

const ReceiptDir = ".provision"

type ReceiptStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Receipt records what the last run did to a destination.
type Receipt struct {
	RunID       string        `json:"run_id"`
	Time        time.Time     `json:"time"`
	Source      string        `json:"source"`
	ArchiveSum  string        `json:"archive_sum,omitempty"`
	Platform    string        `json:"platform"`
	Environment string        `json:"environment,omitempty"`
	Interactive bool          `json:"interactive"`
	Steps       []ReceiptStep `json:"steps"`
}

func ReceiptPath(dest string) string {
	return filepath.Join(dest, ReceiptDir, "receipt.json")
}

func WriteReceipt(dest, source string, report *Report) error {
	rec := Receipt{
		RunID:       report.RunID,
		Time:        time.Now().UTC(),
		Source:      source,
		ArchiveSum:  report.ArchiveSum,
		Platform:    report.Profile.Family.String(),
		Interactive: report.Interactive,
	}

	if report.Environment != nil {
		rec.Environment = report.Environment.Root
	}

	for _, s := range report.Steps {
		rec.Steps = append(rec.Steps, ReceiptStep{Name: s.Name, Status: s.Status.String()})
	}

	path := ReceiptPath(dest)

	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, data, 0644)
}

func ReadReceipt(dest string) (*Receipt, error) {
	data, err := ioutil.ReadFile(ReceiptPath(dest))
	if err != nil {
		return nil, err
	}

	var rec Receipt

	err = json.Unmarshal(data, &rec)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}
