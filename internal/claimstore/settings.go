package claimstore

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/errors"
)

// Well-known properties read under the store's application name.
const (
	PropCheckInDirectory   = "check_in_directory"
	PropCheckOutDirectory  = "check_out_directory"
	PropClaimSizeThreshold = "claim_size_threshold"
)

// Settings resolves the store configuration from a provider once and caches
// it. Construct one per process and share it; Reset exists for tests.
type Settings struct {
	provider    config.Provider
	application string

	mu        sync.Mutex
	checkIn   *string
	checkOut  *string
	threshold *int64
}

// NewSettings returns settings read from provider under application. An
// empty application defaults to config.DefaultApplication.
func NewSettings(provider config.Provider, application string) *Settings {
	if application == "" {
		application = config.DefaultApplication
	}
	return &Settings{provider: provider, application: application}
}

// Application is the application name properties are read under.
func (s *Settings) Application() string {
	return s.application
}

// CheckInDirectory is the root captured payloads are written under.
func (s *Settings) CheckInDirectory() (string, error) {
	return s.directory(&s.checkIn, PropCheckInDirectory)
}

// CheckOutDirectory is the root claim-check references are redeemed from.
func (s *Settings) CheckOutDirectory() (string, error) {
	return s.directory(&s.checkOut, PropCheckOutDirectory)
}

// ClaimSizeThreshold is the payload size, in bytes, above which bodies are
// claimed.
func (s *Settings) ClaimSizeThreshold() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.threshold != nil {
		return *s.threshold, nil
	}
	raw, err := s.read(PropClaimSizeThreshold)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, errors.NewConfiguration(s.application, PropClaimSizeThreshold, err)
	}
	if v < 0 {
		return 0, errors.NewConfiguration(s.application, PropClaimSizeThreshold,
			fmt.Errorf("threshold %d is negative", v))
	}
	s.threshold = &v
	return v, nil
}

// RequiresCheckInAndOut reports whether payloads are read back from a
// different location than they are written to.
func (s *Settings) RequiresCheckInAndOut() (bool, error) {
	in, err := s.CheckInDirectory()
	if err != nil {
		return false, err
	}
	out, err := s.CheckOutDirectory()
	if err != nil {
		return false, err
	}
	return RequiresCheckInAndOut(in, out), nil
}

// Reset drops every cached value.
func (s *Settings) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkIn, s.checkOut, s.threshold = nil, nil, nil
}

func (s *Settings) directory(slot **string, property string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if *slot != nil {
		return **slot, nil
	}
	v, err := s.read(property)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", errors.NewConfiguration(s.application, property, fmt.Errorf("value is empty"))
	}
	*slot = &v
	return v, nil
}

func (s *Settings) read(property string) (string, error) {
	if s.provider == nil {
		return "", errors.NewConfiguration(s.application, property, config.ErrPropertyNotFound)
	}
	v, err := s.provider.Read(s.application, property)
	if err != nil {
		return "", errors.NewConfiguration(s.application, property, err)
	}
	return v, nil
}

// RequiresCheckInAndOut compares two directories ignoring case, separator
// style and a single trailing separator.
func RequiresCheckInAndOut(checkIn, checkOut string) bool {
	return !strings.EqualFold(normalizeDir(checkIn), normalizeDir(checkOut))
}

func normalizeDir(dir string) string {
	dir = strings.ReplaceAll(dir, `\`, "/")
	if len(dir) > 1 {
		dir = strings.TrimSuffix(dir, "/")
	}
	return dir
}
