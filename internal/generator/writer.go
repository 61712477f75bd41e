package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FixturePattern matches the files WriteDataset produces.
const FixturePattern = "client-*.json"

// WriteDataset writes one client-<id>.json file per client under dir, the
// layout the fixture upstream reads.
func WriteDataset(dataset Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, detail := range dataset.Clients {
		path := filepath.Join(dir, fmt.Sprintf("client-%d.json", detail.Client.ClientID))
		if err := writeJSON(path, detail); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}
