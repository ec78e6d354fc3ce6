/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
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

// Package kvdriver adapts a set of plain get/set/del/list/search/walk
// functions into a kvtypes.KVDriver, so any backing store (an
// in-process map, a file, a trust-list cache) can be plugged into
// kvitem without writing a bespoke driver type for each one.
package kvdriver

import (
	kvtypes "github.com/nabbar/opcua-core/database/kvtypes"
)

type FuncNew[K comparable, M any] func() kvtypes.KVDriver[K, M]

type FuncGet[K comparable, M any] func(key K, model *M) error
type FuncSet[K comparable, M any] func(key K, model M) error
type FuncDel[K comparable] func(key K) error
type FuncList[K comparable] func() ([]K, error)
type FuncSearch[K comparable] func(pattern K) ([]K, error)
type FuncWalk[K comparable, M any] func(fct kvtypes.FctWalk[K, M]) error

type drv[K comparable, M any] struct {
	cmp kvtypes.Compare[K]
	nw  FuncNew[K, M]
	fg  FuncGet[K, M]
	fs  FuncSet[K, M]
	fd  FuncDel[K]
	fl  FuncList[K]
	fc  FuncSearch[K]
	fw  FuncWalk[K, M]
}

// New builds a kvtypes.KVDriver that delegates every operation to the
// given functions. newFunc is called by New() on the returned driver,
// so callers typically close over their own newFunc when constructing
// one (see the package tests for the self-referential pattern).
func New[K comparable, M any](
	cmp kvtypes.Compare[K],
	newFunc FuncNew[K, M],
	get FuncGet[K, M],
	set FuncSet[K, M],
	del FuncDel[K],
	list FuncList[K],
	search FuncSearch[K],
	walk FuncWalk[K, M],
) kvtypes.KVDriver[K, M] {
	return &drv[K, M]{
		cmp: cmp,
		nw:  newFunc,
		fg:  get,
		fs:  set,
		fd:  del,
		fl:  list,
		fc:  search,
		fw:  walk,
	}
}

func (d *drv[K, M]) New() kvtypes.KVDriver[K, M] {
	if d.nw == nil {
		return nil
	}
	return d.nw()
}

func (d *drv[K, M]) Get(key K, model *M) error {
	if d.fg == nil {
		return nil
	}
	return d.fg(key, model)
}

func (d *drv[K, M]) Set(key K, model M) error {
	if d.fs == nil {
		return nil
	}
	return d.fs(key, model)
}

func (d *drv[K, M]) Del(key K) error {
	if d.fd == nil {
		return nil
	}
	return d.fd(key)
}

func (d *drv[K, M]) List() ([]K, error) {
	if d.fl == nil {
		return nil, nil
	}
	return d.fl()
}

func (d *drv[K, M]) Search(pattern K) ([]K, error) {
	if d.fc == nil {
		return nil, nil
	}
	return d.fc(pattern)
}

func (d *drv[K, M]) Walk(fct kvtypes.FctWalk[K, M]) error {
	if d.fw == nil {
		return nil
	}
	return d.fw(fct)
}
