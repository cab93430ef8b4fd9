// Copyright (C) 2023 The hdrzip Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package tests

import (
	"os"
	"os/exec"
	"strings"
)

// Diff produces a unified diff of two strings. The second
// return value is false if diffing was not possible (for
// instance when no diff binary is present).
func Diff(s1, s2 string) (string, bool) {
	tmpfile := func(s string) (string, error) {
		f, err := os.CreateTemp("", "diff*")
		if err != nil {
			return "", err
		}
		defer f.Close()
		if _, err := f.WriteString(s); err != nil {
			os.Remove(f.Name())
			return "", err
		}
		return f.Name(), nil
	}
	f1, err := tmpfile(s1)
	if err != nil {
		return "", false
	}
	defer os.Remove(f1)
	f2, err := tmpfile(s2)
	if err != nil {
		return "", false
	}
	defer os.Remove(f2)

	output, err := exec.Command("diff", "-u", f1, f2).CombinedOutput()
	if err != nil && !strings.HasPrefix(err.Error(), "exit status ") {
		return "", false
	}
	return string(output), true
}
