// Package ingest reads shipment dataset exports into ShipmentRecords.
package ingest

import (
	"fmt"
	"strings"

	"github.com/shipment-insights/backend/internal/models"
)

// ProgressCallback is called periodically during parsing to report progress.
type ProgressCallback func(rowsProcessed int, bytesProcessed int64, totalBytes int64)

// ParsedDataset is the result of reading one dataset file. Records still
// carry nullable fields; validation happens in the risk normalizer.
type ParsedDataset struct {
	Records  []models.ShipmentRecord
	Carriers map[string]struct{}
	Routes   map[string]struct{}
}

// Parser defines the interface for dataset file parsers.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// CanParse returns true if this parser can handle the given file.
	CanParse(filePath string) (bool, error)
	// Parse parses the entire file and returns the result.
	Parse(filePath string) (*ParsedDataset, []*models.RowError, error)
	// ParseWithProgress parses with progress callbacks for large files.
	ParseWithProgress(filePath string, onProgress ProgressCallback) (*ParsedDataset, []*models.RowError, error)
}

// Registry holds all available parsers and provides auto-detection.
type Registry struct {
	parsers []Parser
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewShipmentCSVParser(','),
			NewShipmentCSVParser('\t'),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new parser to the registry.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// FindParser detects the correct parser for a file.
func (r *Registry) FindParser(filePath string) (Parser, error) {
	for _, p := range r.parsers {
		can, err := p.CanParse(filePath)
		if err != nil {
			continue
		}
		if can {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no suitable parser found for file: %s", filePath)
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (Parser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}
