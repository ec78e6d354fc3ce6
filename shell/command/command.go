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

// Package command models a named, runnable shell command with a
// description, the shape the config registry exposes so an operator
// shell can list and run component-management commands without
// depending on any particular shell implementation.
package command

import "io"

// CommandInfo is the metadata half of a Command: enough to list it in
// a help screen without being able to run it.
type CommandInfo interface {
	Name() string
	Description() string
}

// Command is a named command that writes its output to buf and its
// errors to err, given the trailing arguments the caller was invoked
// with.
type Command interface {
	CommandInfo
	Run(buf io.Writer, err io.Writer, args []string)
}

type info struct {
	name string
	desc string
}

func (i *info) Name() string        { return i.name }
func (i *info) Description() string { return i.desc }

// Info returns the metadata for a command without a runnable body.
func Info(name, description string) CommandInfo {
	return &info{name: name, desc: description}
}

type cmd struct {
	info
	run func(buf io.Writer, err io.Writer, args []string)
}

func (c *cmd) Run(buf io.Writer, err io.Writer, args []string) {
	if c.run == nil {
		return
	}
	c.run(buf, err, args)
}

// New builds a runnable Command from a name, description and body.
func New(name, description string, run func(buf io.Writer, err io.Writer, args []string)) Command {
	return &cmd{info: info{name: name, desc: description}, run: run}
}
