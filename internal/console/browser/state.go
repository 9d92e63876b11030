package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// storageState is the on-disk form of an authenticated session.
type storageState struct {
	SavedAt time.Time      `json:"saved_at"`
	Cookies []storedCookie `json:"cookies"`
}

type storedCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

func fromNetwork(c *network.Cookie) storedCookie {
	sc := storedCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: string(c.SameSite),
	}
	if !c.Session {
		sc.Expires = c.Expires
	}
	return sc
}

func (c storedCookie) param() *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	if c.SameSite != "" {
		p.SameSite = network.CookieSameSite(c.SameSite)
	}
	if c.Expires > 0 {
		sec := int64(c.Expires)
		exp := cdp.TimeSinceEpoch(time.Unix(sec, 0))
		p.Expires = &exp
	}
	return p
}

// readState loads a storage state file.
func readState(path string) (storageState, error) {
	var st storageState
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing storage state %s: %w", path, err)
	}
	return st, nil
}

// writeState stores a storage state file readable by the owner only.
func writeState(path string, st storageState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating storage state dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing storage state: %w", err)
	}
	return nil
}

// restoreState installs the stored cookies into the browser.
func (s *Session) restoreState(ctx context.Context) error {
	st, err := readState(s.cfg.StorageStatePath)
	if err != nil {
		return err
	}
	params := make([]*network.CookieParam, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		params = append(params, c.param())
	}
	if len(params) == 0 {
		return nil
	}
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("restoring session cookies: %w", err)
	}
	s.logger.Debug("session state restored", "cookies", len(params), "saved_at", st.SavedAt)
	return nil
}

// SaveState writes the browser's current cookies to Config.StorageStatePath.
func (s *Session) SaveState(ctx context.Context) error {
	if s.cfg.StorageStatePath == "" {
		return ErrNoState
	}
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("reading session cookies: %w", err)
	}

	st := storageState{SavedAt: s.now().UTC(), Cookies: make([]storedCookie, 0, len(cookies))}
	for _, c := range cookies {
		st.Cookies = append(st.Cookies, fromNetwork(c))
	}
	return writeState(s.cfg.StorageStatePath, st)
}
