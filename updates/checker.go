package updates

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// State is the outcome of the last version check.
type State struct {
	Current         string     `json:"currentVersion"`
	Latest          string     `json:"latestVersion,omitempty"`
	UpdateAvailable bool       `json:"updateAvailable"`
	CheckedAt       *time.Time `json:"checkedAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Checker compares the running version with the one published at url.
type Checker struct {
	http    *resty.Client
	url     string
	current string
	logger  *zap.Logger

	mu    sync.RWMutex
	state State
}

func NewChecker(url, current string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		http:    resty.New().SetTimeout(5 * time.Second),
		url:     url,
		current: current,
		logger:  logger,
		state:   State{Current: current},
	}
}

// Check fetches the published version. A failed fetch keeps the last known
// latest version and records the error.
func (c *Checker) Check(ctx context.Context) (State, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err == nil && resp.StatusCode() != http.StatusOK {
		err = fmt.Errorf("version check: unexpected status %d", resp.StatusCode())
	}

	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CheckedAt = &now
	if err != nil {
		c.state.Error = err.Error()
		c.logger.Warn("version check failed", zap.Error(err))
		return c.state, err
	}

	latest := strings.TrimSpace(resp.String())
	c.state.Latest = latest
	c.state.UpdateAvailable = latest != "" && latest != c.current
	c.state.Error = ""
	if c.state.UpdateAvailable {
		c.logger.Info("update available", zap.String("current", c.current), zap.String("latest", latest))
	} else {
		c.logger.Debug("version is current", zap.String("current", c.current))
	}
	return c.state, nil
}

func (c *Checker) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
