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

// Package viper wraps *spf13/viper.Viper behind a small interface so the
// config registry and the cobra entrypoint can pass a viper instance around
// without binding every component to the concrete type.
package viper

import (
	spfvpr "github.com/spf13/viper"
)

// Viper is the indirection the config registry stores a *spf13/viper.Viper
// behind.
type Viper interface {
	Viper() *spfvpr.Viper
}

// FuncViper is registered with the config registry so it can obtain the
// current viper instance lazily (the instance may be created after the
// component that needs it).
type FuncViper func() Viper

type vpr struct {
	v *spfvpr.Viper
}

// New wraps an existing *spf13/viper.Viper, or allocates a fresh one if nil.
func New(v *spfvpr.Viper) Viper {
	if v == nil {
		v = spfvpr.New()
	}
	return &vpr{v: v}
}

func (o *vpr) Viper() *spfvpr.Viper {
	return o.v
}
