// Package dataset loads the affirmation data resource.
package dataset

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
)

//go:embed affirmations.json
var bundled []byte

type Source string

const (
	SourceRemote  Source = "remote"
	SourceFile    Source = "file"
	SourceBundled Source = "bundled"
	SourceDefault Source = "default"
)

// maxResourceSize caps how much of the data resource is read.
const maxResourceSize = 4 << 20

// Loader tries each configured source in turn: URL, then File, then the bundled copy.
type Loader struct {
	// Client fetches URL. Passing the cache manager's client lets the data resource be
	// served from the offline snapshot.
	Client *http.Client
	URL    string
	File   string
}

// Load never fails. When every source is unreachable or invalid it returns the minimal default.
func (l Loader) Load(ctx context.Context) (models.Dataset, Source) {
	if l.URL != "" {
		ds, err := l.fetch(ctx)
		if err == nil {
			return ds, SourceRemote
		}
		logger.Warn("Data resource unavailable", "url", l.URL, "error", err)
	}

	if l.File != "" {
		ds, err := ReadFile(l.File)
		if err == nil {
			return ds, SourceFile
		}
		logger.Warn("Data file unavailable", "path", l.File, "error", err)
	}

	ds, err := Parse(bundled)
	if err != nil {
		logger.Error("Bundled data resource is invalid", "error", err)
		return models.DefaultDataset(), SourceDefault
	}
	return ds, SourceBundled
}

func (l Loader) fetch(ctx context.Context) (models.Dataset, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return models.Dataset{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return models.Dataset{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Dataset{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceSize))
	if err != nil {
		return models.Dataset{}, err
	}
	return Parse(data)
}

func ReadFile(path string) (models.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Dataset{}, err
	}
	return Parse(data)
}

// Parse decodes and validates a data resource document.
func Parse(data []byte) (models.Dataset, error) {
	var ds models.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return models.Dataset{}, fmt.Errorf("invalid data resource: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return models.Dataset{}, err
	}
	if ds.Categories == nil {
		ds.Categories = map[string]string{}
	}
	return ds, nil
}

// Bundled returns the data resource compiled into the binary.
func Bundled() []byte {
	return bundled
}
