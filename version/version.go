/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package version carries the build-time identity of the server binary
// (release tag, commit hash, build date, license, package path) so the
// cobra entrypoint and the config registry can print it without every
// caller hard-coding ldflags-injected globals.
package version

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"
)

// License identifies the license a build is distributed under. Only
// the name and a short legal summary are carried here; operators who
// need the full legal text ship it alongside the binary.
type License uint8

const (
	License_MIT License = iota
	License_GNU_GPL_v3
	License_GNU_Affero_GPL_v3
	License_GNU_Lesser_GPL_v3
	License_Mozilla_PL_v2
	License_Apache_v2
	License_Unlicense
	License_Creative_Common_Zero_v1
	License_Creative_Common_Attribution_v4_int
	License_Creative_Common_Attribution_Share_Alike_v4_int
	License_SIL_Open_Font_1_1
)

var licenseName = map[License]string{
	License_MIT:                    "MIT License",
	License_GNU_GPL_v3:             "GNU GENERAL PUBLIC LICENSE Version 3",
	License_GNU_Affero_GPL_v3:      "GNU AFFERO GENERAL PUBLIC LICENSE Version 3",
	License_GNU_Lesser_GPL_v3:      "GNU LESSER GENERAL PUBLIC LICENSE Version 3",
	License_Mozilla_PL_v2:          "Mozilla Public License Version 2.0",
	License_Apache_v2:              "Apache License Version 2.0",
	License_Unlicense:              "Free and unencumbered software",
	License_Creative_Common_Zero_v1: "Creative Commons CC0 1.0 Universal",
	License_Creative_Common_Attribution_v4_int:             "Creative Commons Attribution 4.0 International",
	License_Creative_Common_Attribution_Share_Alike_v4_int: "Creative Commons Attribution-ShareAlike 4.0 International",
	License_SIL_Open_Font_1_1:                              "SIL OPEN FONT LICENSE Version 1.1",
}

var licenseSummary = map[License]string{
	License_MIT:                    "Permission is hereby granted, free of charge, to deal in the Software without restriction, provided this notice is retained.",
	License_GNU_GPL_v3:             "Licensed under the GNU General Public License v3; redistributions must preserve this license and source availability.",
	License_GNU_Affero_GPL_v3:      "Licensed under the GNU Affero General Public License v3; network use counts as distribution.",
	License_GNU_Lesser_GPL_v3:      "Licensed under the GNU Lesser General Public License v3; linking does not extend copyleft to the linking work.",
	License_Mozilla_PL_v2:          "Licensed under the Mozilla Public License v2.0; modified files must remain under this license.",
	License_Apache_v2:              "Licensed under the Apache License, Version 2.0; see the License for the specific permissions and limitations.",
	License_Unlicense:              "This is free and unencumbered software released into the public domain.",
	License_Creative_Common_Zero_v1: "The person who associated a work with this deed has dedicated the work to the public domain.",
	License_Creative_Common_Attribution_v4_int:             "Licensed under CC BY 4.0; you are free to share and adapt with attribution.",
	License_Creative_Common_Attribution_Share_Alike_v4_int: "Licensed under CC BY-SA 4.0; adaptations must be shared under the same terms.",
	License_SIL_Open_Font_1_1:                              "Licensed under the SIL Open Font License 1.1; fonts may be bundled, embedded and redistributed.",
}

const licenseSeparator = "********************************************************************************"

// Version exposes the build metadata of the running binary.
type Version interface {
	GetPackage() string
	GetDescription() string
	GetBuild() string
	GetRelease() string
	GetAuthor() string
	GetPrefix() string
	GetDate() string
	GetTime() time.Time
	GetAppId() string
	GetHeader() string
	GetInfo() string
	GetRootPackagePath() string
	GetLicenseName() string
	GetLicenseLegal(additional ...License) string
	GetLicenseBoiler() string
	PrintInfo()
	PrintLicense(additional ...License)
}

type vrs struct {
	license License
	pkg     string
	desc    string
	date    time.Time
	dateStr string
	build   string
	release string
	author  string
	prefix  string
	root    string
}

const dateLayout = "2006-01-02"

// NewVersion builds a Version. ref is any value from the caller's own
// package, used purely through reflection to recover the import path
// numSubPackage directories become the caller's module root
// (numSubPackage=0 keeps the package's own path, 1 goes up one level,
// and so on).
func NewVersion(license License, pkg, description, date, build, release, author, prefix string, ref any, numSubPackage int) Version {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		t = time.Now()
	}

	pth := reflect.TypeOf(ref).PkgPath()
	parts := strings.Split(pth, "/")
	if numSubPackage > 0 && numSubPackage < len(parts) {
		parts = parts[:len(parts)-numSubPackage]
	}
	root := strings.Join(parts, "/")

	if pkg == "" || pkg == "noname" {
		pkg = parts[len(parts)-1]
	}

	return &vrs{
		license: license,
		pkg:     pkg,
		desc:    description,
		date:    t,
		dateStr: date,
		build:   build,
		release: release,
		author:  author,
		prefix:  strings.ToUpper(prefix),
		root:    root,
	}
}

func (v *vrs) GetPackage() string     { return v.pkg }
func (v *vrs) GetDescription() string { return v.desc }
func (v *vrs) GetBuild() string       { return v.build }
func (v *vrs) GetRelease() string     { return v.release }

func (v *vrs) GetAuthor() string {
	return fmt.Sprintf("%s (source: %s)", v.author, v.root)
}

func (v *vrs) GetPrefix() string { return v.prefix }

func (v *vrs) GetDate() string {
	return v.date.Format("2006-01-02 (Monday)")
}

func (v *vrs) GetTime() time.Time { return v.date }

func (v *vrs) GetAppId() string {
	return fmt.Sprintf("%s-%s-%s [Runtime: %s]", v.release, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (v *vrs) GetHeader() string {
	return fmt.Sprintf("%s %s (build %s) - %s", v.pkg, v.release, v.build, v.desc)
}

func (v *vrs) GetInfo() string {
	return fmt.Sprintf("Package: %s\nRelease: %s\nBuild: %s\nDate: %s\nAuthor: %s\nLicense: %s",
		v.pkg, v.release, v.build, v.GetDate(), v.GetAuthor(), v.GetLicenseName())
}

func (v *vrs) GetRootPackagePath() string { return v.root }

func (v *vrs) GetLicenseName() string {
	if n, k := licenseName[v.license]; k {
		return n
	}
	return "Unknown License"
}

func (v *vrs) GetLicenseLegal(additional ...License) string {
	var b strings.Builder

	b.WriteString(v.GetLicenseName())
	b.WriteString("\n\n")
	b.WriteString(licenseSummary[v.license])
	b.WriteString("\n")

	for _, a := range additional {
		b.WriteString("\n")
		b.WriteString(licenseSeparator)
		b.WriteString("\n")
		if n, k := licenseName[a]; k {
			b.WriteString(n)
		}
		b.WriteString("\n\n")
		b.WriteString(licenseSummary[a])
		b.WriteString("\n")
		b.WriteString(licenseSeparator)
		b.WriteString("\n")
	}

	return b.String()
}

func (v *vrs) GetLicenseBoiler() string {
	year := v.date.Year()
	if year <= 1 {
		year = time.Now().Year()
	}

	var b strings.Builder

	b.WriteString(v.GetLicenseName())
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Copyright (c) %d %s\n\n", year, v.author))

	if v.desc != "" {
		b.WriteString(v.pkg)
		b.WriteString(": ")
		b.WriteString(v.desc)
		b.WriteString("\n\n")
	}

	b.WriteString(licenseSummary[v.license])

	return b.String()
}

func (v *vrs) PrintInfo() {
	fmt.Println(v.GetInfo())
}

func (v *vrs) PrintLicense(additional ...License) {
	fmt.Println(v.GetLicenseLegal(additional...))
}
