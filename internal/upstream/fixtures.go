package upstream

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// LoadFixtures reads every *.json client detail document in dir, ordered by
// file name.
func LoadFixtures(dir string) ([]domain.ClientDetail, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list fixtures: %w", err)
	}
	sort.Strings(paths)

	details := make([]domain.ClientDetail, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", path, err)
		}
		var detail domain.ClientDetail
		if err := json.Unmarshal(raw, &detail); err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", path, err)
		}
		if detail.Client.ClientID <= 0 {
			return nil, fmt.Errorf("fixture %s: missing client.clientID", path)
		}
		details = append(details, detail)
	}
	return details, nil
}
