package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/logger"
)

// FileSource loads signal bundles exported by the acquisition stage.
//
// For a run date it reads, in order of preference:
//
//	<dir>/<date>/*.json, *.yaml, *.yml
//	<dir>/<date>.yaml
//
// Each file holds one bundle or a list of bundles.
type FileSource struct {
	dir    string
	logger *logger.Logger
}

// NewFileSource creates a source rooted at dir
func NewFileSource(dir string, log *logger.Logger) *FileSource {
	if log == nil {
		log = logger.NewNop()
	}
	return &FileSource{dir: dir, logger: log.Component("signal_source")}
}

// Load returns the bundles of date that belong to the watchlist, ordered
// as the watchlist lists them (stable first)
func (s *FileSource) Load(ctx context.Context, date time.Time, watchlist map[contracts.Category][]string) ([]contracts.SignalBundle, error) {
	day := contracts.FormatDate(date)

	files, err := s.files(day)
	if err != nil {
		return nil, err
	}

	categories := make(map[string]contracts.Category)
	var order []string
	for _, c := range contracts.Categories {
		for _, sym := range watchlist[c] {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if _, dup := categories[sym]; sym == "" || dup {
				continue
			}
			categories[sym] = c
			order = append(order, sym)
		}
	}

	bySymbol := make(map[string]contracts.SignalBundle)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bundles, err := decodeFile(path)
		if err != nil {
			return nil, fmt.Errorf("load signals %s: %w", filepath.Base(path), err)
		}

		for _, b := range bundles {
			b.Symbol = strings.ToUpper(strings.TrimSpace(b.Symbol))
			cat, ok := categories[b.Symbol]
			if !ok {
				s.logger.WithField("symbol", b.Symbol).Debug("Skipping symbol outside watchlist")
				continue
			}
			if _, dup := bySymbol[b.Symbol]; dup {
				s.logger.WithFields(map[string]interface{}{"symbol": b.Symbol, "file": filepath.Base(path)}).
					Warn("Duplicate bundle ignored")
				continue
			}
			// watchlist 분류가 우선
			if tagged, err := contracts.ParseCategory(string(b.Category)); err == nil && tagged != cat {
				s.logger.WithFields(map[string]interface{}{
					"symbol":    b.Symbol,
					"tagged":    tagged,
					"watchlist": cat,
				}).Warn("Bundle category conflicts with watchlist, using watchlist")
			}
			b.Category = cat
			if n := b.Sanitize(); n > 0 {
				s.logger.WithFields(map[string]interface{}{"symbol": b.Symbol, "fields": n}).
					Warn("Cleared non-finite values from bundle")
			}
			if b.Timestamp.IsZero() {
				b.Timestamp = date.UTC()
			}
			b.Analysis = nil
			bySymbol[b.Symbol] = b
		}
	}

	out := make([]contracts.SignalBundle, 0, len(bySymbol))
	for _, sym := range order {
		if b, ok := bySymbol[sym]; ok {
			out = append(out, b)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"date":      day,
		"files":     len(files),
		"bundles":   len(out),
		"watchlist": len(order),
	}).Info("Signal bundles loaded")

	return out, nil
}

// files lists the input files of a date, sorted by name
func (s *FileSource) files(day string) ([]string, error) {
	dayDir := filepath.Join(s.dir, day)
	entries, err := os.ReadDir(dayDir)
	switch {
	case err == nil:
		var files []string
		for _, e := range entries {
			if !e.IsDir() && isSignalFile(e.Name()) {
				files = append(files, filepath.Join(dayDir, e.Name()))
			}
		}
		sort.Strings(files)
		return files, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read signal dir: %w", err)
	}

	for _, ext := range []string{".yaml", ".yml", ".json"} {
		single := filepath.Join(s.dir, day+ext)
		if _, err := os.Stat(single); err == nil {
			return []string{single}, nil
		}
	}
	return nil, fmt.Errorf("no signal input for %s under %s: %w", day, s.dir, contracts.ErrNotFound)
}

func isSignalFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// decodeFile reads one bundle or a list of bundles
func decodeFile(path string) ([]contracts.SignalBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return decodeJSON(data)
	}
	return decodeYAML(data)
}

func decodeJSON(data []byte) ([]contracts.SignalBundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []contracts.SignalBundle
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var one contracts.SignalBundle
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []contracts.SignalBundle{one}, nil
}

func decodeYAML(data []byte) ([]contracts.SignalBundle, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var list []contracts.SignalBundle
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var one contracts.SignalBundle
	if err := root.Decode(&one); err != nil {
		return nil, err
	}
	return []contracts.SignalBundle{one}, nil
}
