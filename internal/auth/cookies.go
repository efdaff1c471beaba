// Package auth loads session cookies exported from an authenticated
// browser session.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
)

// Cookie is one exported browser cookie. Only name and value are
// mandatory; the rest default to the most permissive settings that still
// replay the session.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// LoadCookies reads a JSON array of cookies from path. A missing file
// returns (nil, nil): the caller decides whether unauthenticated fetching
// is acceptable. A present but unparseable file is an error, because a
// half-broken cookie file usually means a botched export rather than an
// intentional opt-out.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookies file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookies file %s: %w", path, err)
	}

	valid := cookies[:0]
	for _, c := range cookies {
		if c.Name == "" || c.Value == "" {
			continue
		}
		if c.Path == "" {
			c.Path = "/"
		}
		valid = append(valid, c)
	}
	return valid, nil
}
