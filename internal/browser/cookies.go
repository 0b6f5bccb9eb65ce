package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"
)

// saveCookies writes the page's cookies to the configured file. The file is
// credential material, so it is created owner-only.
func (s *Session) saveCookies() error {
	cookies, err := s.page.Cookies(nil)
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	if dir := filepath.Dir(s.cookieFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create cookie dir: %w", err)
		}
	}
	if err := os.WriteFile(s.cookieFile, data, 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}

	s.logger.Debug("session saved", "path", s.cookieFile, "cookies", len(cookies))
	return nil
}

// loadCookies restores a previously saved session. A missing file is not an
// error; the run simply logs in from scratch.
func (s *Session) loadCookies() error {
	data, err := os.ReadFile(s.cookieFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cookie file: %w", err)
	}

	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("decode cookie file: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
			Expires:  c.Expires,
		})
	}

	if err := s.page.SetCookies(params); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}

	s.logger.Info("session restored", "path", s.cookieFile, "cookies", len(params))
	return nil
}
