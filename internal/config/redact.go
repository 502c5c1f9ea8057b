package config

import "net/url"

// RedactURL masks the password in a database URL so the DSN can appear in
// logs and CLI output. URLs that cannot be parsed, or that carry no
// password, come back unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}

	u.User = url.UserPassword(u.User.Username(), "***")

	return u.String()
}
