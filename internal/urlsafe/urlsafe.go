// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package urlsafe renders URLs for logs and spans without credentials.
package urlsafe

import (
	"net/url"
	"strings"
)

// Redacted replaces sensitive values.
const Redacted = "[REDACTED]"

// sensitiveParams contains query parameter names that should be redacted from logs.
// These are matched case-insensitively as substrings.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"password",
	"auth",
	"secret",
	"key",
	"credential",
	"signature",
}

// Sanitize drops userinfo and redacts sensitive query parameters.
func Sanitize(u *url.URL) string {
	if u == nil {
		return ""
	}

	safe := *u
	if safe.User != nil {
		safe.User = url.User(Redacted)
	}

	if safe.RawQuery != "" {
		q := safe.Query()
		redacted := false
		for param := range q {
			if IsSensitiveParam(param) {
				q.Set(param, Redacted)
				redacted = true
			}
		}
		if redacted {
			safe.RawQuery = q.Encode()
		}
	}
	return safe.String()
}

// SanitizeString is Sanitize for a raw URL. Unparsable input is replaced
// entirely since it may still carry credentials.
func SanitizeString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return Redacted
	}
	return Sanitize(u)
}

// IsSensitiveParam checks if a parameter name matches the sensitive list.
func IsSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
