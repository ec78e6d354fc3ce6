/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package pki

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/nabbar/opcua-core/errors"
	liblog "github.com/nabbar/opcua-core/logger"
)

// GroupDirs names the on-disk directories a DirectoryWatcher reloads one
// certificate group's trust list from. Each entry holds raw DER files
// (.der/.crt/.crl, any extension is accepted); an empty path skips that
// part of the list.
type GroupDirs struct {
	Group        Group
	TrustedCerts string
	TrustedCRLs  string
	IssuerCerts  string
	IssuerCRLs   string
}

func (d GroupDirs) dirs() []string {
	return []string{d.TrustedCerts, d.TrustedCRLs, d.IssuerCerts, d.IssuerCRLs}
}

// DirectoryWatcher keeps a Store's trust lists in sync with a set of
// on-disk directories, so an operator dropping or removing a certificate
// file takes effect without a server restart (spec's trust-list hot
// reload). It watches for filesystem events rather than polling.
type DirectoryWatcher struct {
	store    Store
	log      liblog.FuncLog
	dirs     []GroupDirs
	watch    *fsnotify.Watcher
	done     chan struct{}
	closeOne sync.Once
}

// NewDirectoryWatcher opens one fsnotify watch per configured directory.
// Call Run on its own goroutine to load the initial state and start
// reacting to changes; call Close to stop it.
func NewDirectoryWatcher(store Store, log liblog.FuncLog, dirs []GroupDirs) (*DirectoryWatcher, errors.Error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ErrorWatchFailed.Error(err)
	}

	dw := &DirectoryWatcher{store: store, log: log, dirs: dirs, watch: w, done: make(chan struct{})}
	for _, d := range dirs {
		for _, dir := range d.dirs() {
			if dir == "" {
				continue
			}
			if err := w.Add(dir); err != nil {
				_ = w.Close()
				return nil, ErrorWatchFailed.Error(err)
			}
		}
	}
	return dw, nil
}

// Run loads every configured directory once, then blocks reacting to
// fsnotify events until Close is called. Every reload -- initial and
// event-driven -- runs on this one goroutine, so it never races with
// itself over the Store it writes to.
func (w *DirectoryWatcher) Run() {
	for _, d := range w.dirs {
		w.reload(d)
	}

	for {
		select {
		case ev, ok := <-w.watch.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.reloadContaining(ev.Name)
		case err, ok := <-w.watch.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log().Info("pki trust list watch error", nil, err)
			}
		case <-w.done:
			return
		}
	}
}

// Close stops Run and releases the underlying fsnotify watcher. Safe to
// call more than once.
func (w *DirectoryWatcher) Close() error {
	w.closeOne.Do(func() {
		close(w.done)
	})
	return w.watch.Close()
}

func (w *DirectoryWatcher) reloadContaining(path string) {
	changed := filepath.Dir(path)
	for _, d := range w.dirs {
		for _, dir := range d.dirs() {
			if dir == changed {
				w.reload(d)
				return
			}
		}
	}
}

func (w *DirectoryWatcher) reload(d GroupDirs) {
	trusted := TrustList{Certificates: readDERDir(d.TrustedCerts), CRLs: readDERDir(d.TrustedCRLs)}
	issuer := TrustList{Certificates: readDERDir(d.IssuerCerts), CRLs: readDERDir(d.IssuerCRLs)}

	if err := w.store.SetTrustList(d.Group, trusted, issuer); err != nil && w.log != nil {
		w.log().Info("pki trust list reload failed", nil, d.Group, err)
	}
}

func readDERDir(dir string) [][]byte {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out [][]byte
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, rerr := os.ReadFile(filepath.Join(dir, e.Name()))
		if rerr != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}
