// handlers_profile.go - Scoring profile configuration handlers
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/shipment-insights/backend/internal/models"
	"github.com/shipment-insights/backend/internal/risk"
	"gopkg.in/yaml.v3"
)

// ProfileHandlerImpl implements the ProfileHandler interface. The active
// profile supplies defaults for scoring runs and persists as YAML so edits
// survive restarts.
type ProfileHandlerImpl struct {
	path    string
	mu      sync.RWMutex
	profile *models.ScoringProfile
}

// NewProfileHandler loads the profile at path, creating it with defaults
// when missing or unreadable.
func NewProfileHandler(path string) ProfileHandler {
	h := &ProfileHandlerImpl{path: path}

	profile, err := loadProfile(path)
	if err != nil {
		fmt.Printf("[Profile] Using default profile (%v)\n", err)
		profile = models.DefaultScoringProfile()
		if saveErr := saveProfile(path, profile); saveErr != nil {
			fmt.Printf("[Profile] Failed to write default profile: %v\n", saveErr)
		}
	}
	h.profile = profile

	return h
}

// HandleGetProfile returns the active scoring profile
func (h *ProfileHandlerImpl) HandleGetProfile(c echo.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.JSON(http.StatusOK, h.profile)
}

// HandleUpdateProfile replaces the active scoring profile
func (h *ProfileHandlerImpl) HandleUpdateProfile(c echo.Context) error {
	var profile models.ScoringProfile
	if err := c.Bind(&profile); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if apiErr := validateProfile(&profile); apiErr != nil {
		return apiErr
	}

	if err := saveProfile(h.path, &profile); err != nil {
		return NewInternalError("failed to persist profile", err)
	}

	h.mu.Lock()
	h.profile = &profile
	h.mu.Unlock()

	fmt.Printf("[Profile] Updated active profile: %s\n", profile.Name)
	return c.JSON(http.StatusOK, &profile)
}

// Current returns the active profile for use as scoring defaults.
func (h *ProfileHandlerImpl) Current() *models.ScoringProfile {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.profile
}

// validateProfile runs the engine's own parameter validation over the
// profile so a broken profile is rejected before it is persisted.
func validateProfile(p *models.ScoringProfile) *APIError {
	if p.Name == "" {
		return NewValidationError("name")
	}

	strategy, ok := tierStrategyByName(p.TierStrategy)
	if !ok {
		return NewInvalidConfigError("unknown tier strategy: "+p.TierStrategy, nil)
	}

	params := risk.Params{
		FeatureWeights: p.FeatureWeights,
		TierLabels:     p.TierLabels,
		ScoreWeights:   p.ScoreWeights,
		TierStrategy:   strategy,
	}.WithDefaults()

	if err := params.Validate(); err != nil {
		return NewInvalidConfigError("invalid profile", err)
	}
	return nil
}

func loadProfile(path string) (*models.ScoringProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profile models.ScoringProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if apiErr := validateProfile(&profile); apiErr != nil {
		return nil, fmt.Errorf("invalid profile: %s", apiErr.Message)
	}
	return &profile, nil
}

func saveProfile(path string, profile *models.ScoringProfile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(profile)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
