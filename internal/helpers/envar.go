// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"os"
	"strings"
)

// GetBoolEnv reports the boolean value of the first of envVars that is set to
// a non-empty value. "true", "1", "yes", "on", "enable" and "enabled" are true;
// "false", "0", "no", "off", "disable" and "disabled" are false (case
// insensitive). Any other non-empty value counts as true, so DEBUG=x still
// turns debugging on. defaultValue is returned when none are set.
func GetBoolEnv(defaultValue bool, envVars ...string) bool {
	for _, name := range envVars {
		env := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
		switch env {
		case "":
			continue
		case "false", "0", "no", "off", "disable", "disabled":
			return false
		default:
			return true
		}
	}
	return defaultValue
}
