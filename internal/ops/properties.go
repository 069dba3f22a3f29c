package ops

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/db"
	"github.com/hpungsan/claimstore/internal/errors"
)

// PropertyInput addresses a configuration property.
type PropertyInput struct {
	Application string // default: the store's application
	Property    string // required
	Value       string // set only
}

// PropertyOutput contains a resolved property.
type PropertyOutput struct {
	Application string `json:"application"`
	Property    string `json:"property"`
	Value       string `json:"value"`
}

// PropertyListOutput contains the stored properties.
type PropertyListOutput struct {
	Items []db.Property `json:"items"`
	Count int           `json:"count"`
}

// DeleteOutput reports a removed property.
type DeleteOutput struct {
	Application string `json:"application"`
	Property    string `json:"property"`
	Deleted     bool   `json:"deleted"`
}

// GetProperty resolves a property through provider, the same chain the store
// reads its settings from.
func GetProperty(provider config.Provider, settings *claimstore.Settings, input PropertyInput) (*PropertyOutput, error) {
	app, prop, err := address(settings, input)
	if err != nil {
		return nil, err
	}
	value, err := provider.Read(app, prop)
	if stderrors.Is(err, config.ErrPropertyNotFound) {
		return nil, errors.NewNotFound(app + "/" + prop)
	}
	if err != nil {
		return nil, errors.NewConfiguration(app, prop, err)
	}
	return &PropertyOutput{Application: app, Property: prop, Value: value}, nil
}

// SetProperty stores a property and drops the store's memoized settings so
// the new value applies to the next capture.
func SetProperty(database *sql.DB, settings *claimstore.Settings, input PropertyInput) (*PropertyOutput, error) {
	app, prop, err := address(settings, input)
	if err != nil {
		return nil, err
	}
	if err := validateValue(prop, input.Value); err != nil {
		return nil, err
	}
	if err := db.SetProperty(database, app, prop, input.Value); err != nil {
		return nil, err
	}
	settings.Reset()
	return &PropertyOutput{Application: app, Property: prop, Value: input.Value}, nil
}

// DeleteProperty removes a stored property.
func DeleteProperty(database *sql.DB, settings *claimstore.Settings, input PropertyInput) (*DeleteOutput, error) {
	app, prop, err := address(settings, input)
	if err != nil {
		return nil, err
	}
	if err := db.DeleteProperty(database, app, prop); err != nil {
		return nil, err
	}
	settings.Reset()
	return &DeleteOutput{Application: app, Property: prop, Deleted: true}, nil
}

// ListProperties lists the stored properties of an application; an empty
// application lists every application.
func ListProperties(database *sql.DB, application string) (*PropertyListOutput, error) {
	items, err := db.ListProperties(database, strings.TrimSpace(application))
	if err != nil {
		return nil, err
	}
	return &PropertyListOutput{Items: items, Count: len(items)}, nil
}

func address(settings *claimstore.Settings, input PropertyInput) (string, string, error) {
	prop := strings.TrimSpace(input.Property)
	if prop == "" {
		return "", "", errors.NewInvalidRequest("property is required")
	}
	app := strings.TrimSpace(input.Application)
	if app == "" {
		app = settings.Application()
	}
	return app, prop, nil
}

// validateValue rejects values the store would fail to use.
func validateValue(property, value string) error {
	switch property {
	case claimstore.PropClaimSizeThreshold:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return errors.NewInvalidRequest(fmt.Sprintf("%s must be a non-negative integer", property))
		}
	case claimstore.PropCheckInDirectory, claimstore.PropCheckOutDirectory:
		if strings.TrimSpace(value) == "" {
			return errors.NewInvalidRequest(fmt.Sprintf("%s must not be empty", property))
		}
	}
	return nil
}
