/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package size carries a human-readable byte size through config
// structs (file buffer sizes, chunk buffer limits) that parses from
// and prints back to strings like "64KB" or "4MiB".
package size

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count that marshals as a human-readable string.
type Size int64

const (
	Byte Size = 1
	KB        = Byte * 1000
	MB        = KB * 1000
	GB        = MB * 1000
	KiB       = Byte * 1024
	MiB       = KiB * 1024
	GiB       = MiB * 1024
)

var units = []struct {
	suffix string
	factor Size
}{
	{"GiB", GiB},
	{"MiB", MiB},
	{"KiB", KiB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
	{"B", Byte},
}

// ParseSize parses a string such as "64KB" or "4MiB" into a Size.
// A bare number is interpreted as a byte count.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			n := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			v, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return 0, fmt.Errorf("size: invalid value %q: %w", s, err)
			}
			return Size(v * float64(u.factor)), nil
		}
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("size: invalid value %q: %w", s, err)
	}
	return Size(v), nil
}

func (s Size) String() string {
	for _, u := range units {
		if u.factor == Byte {
			continue
		}
		if s >= u.factor {
			return fmt.Sprintf("%.2f%s", float64(s)/float64(u.factor), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", int64(s))
}

func (s Size) Int64() int64 {
	return int64(s)
}

func (s *Size) UnmarshalText(text []byte) error {
	v, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
