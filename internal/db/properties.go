package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/errors"
)

// Property is a stored configuration value.
type Property struct {
	Application string `json:"application"`
	Property    string `json:"property"`
	Value       string `json:"value"`
	UpdatedAt   int64  `json:"updated_at"`
}

// SetProperty inserts or replaces a property value.
func SetProperty(db *sql.DB, application, property, value string) error {
	if strings.TrimSpace(application) == "" || strings.TrimSpace(property) == "" {
		return errors.NewInvalidRequest("application and property are required")
	}

	query := `
		INSERT INTO properties (application, property, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(application, property)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.Exec(query, application, property, value, time.Now().Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetProperty retrieves a property value.
func GetProperty(db *sql.DB, application, property string) (*Property, error) {
	query := `
		SELECT application, property, value, updated_at
		FROM properties
		WHERE application = ? AND property = ?
	`

	var p Property
	err := db.QueryRow(query, application, property).Scan(&p.Application, &p.Property, &p.Value, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(application + "/" + property)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &p, nil
}

// ListProperties returns every property of an application, ordered by name.
// An empty application lists all properties.
func ListProperties(db *sql.DB, application string) ([]Property, error) {
	query := `
		SELECT application, property, value, updated_at
		FROM properties
	`
	var args []any
	if application != "" {
		query += " WHERE application = ?"
		args = append(args, application)
	}
	query += " ORDER BY application, property"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	props := []Property{}
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.Application, &p.Property, &p.Value, &p.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return props, nil
}

// DeleteProperty removes a property.
func DeleteProperty(db *sql.DB, application, property string) error {
	result, err := db.Exec(`DELETE FROM properties WHERE application = ? AND property = ?`, application, property)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(application + "/" + property)
	}
	return nil
}

// PropertyStore serves configuration properties from the database.
type PropertyStore struct {
	db *sql.DB
}

// NewPropertyStore returns a config.Provider backed by the properties table.
func NewPropertyStore(db *sql.DB) *PropertyStore {
	return &PropertyStore{db: db}
}

// Read implements config.Provider.
func (s *PropertyStore) Read(application, property string) (string, error) {
	p, err := GetProperty(s.db, application, property)
	if errors.Is(err, errors.ErrNotFound) {
		return "", fmt.Errorf("%s/%s: %w", application, property, config.ErrPropertyNotFound)
	}
	if err != nil {
		return "", err
	}
	return p.Value, nil
}
