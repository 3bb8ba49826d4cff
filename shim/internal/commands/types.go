package commands

import (
	"context"
	"sort"
	"strings"
)

// ExecuteFunc runs the control shell with params and returns its output.
// An error is returned only if the shell could not be started or did not
// terminate normally; a non-zero exit status is reported in Output.
type ExecuteFunc func(ctx context.Context, params []string) (Output, error)

type ArgumentMap = map[Argument]string
type NoResult = struct{}

// Output holds the captured result of a single shell invocation.
type Output struct {
	Lines    []string
	ExitCode int
}

// T is the return value type of the command.
// If T is of type NoResult, the command only reports whether it was issued.
type Command[T any] struct {
	cmd    string
	params []string
	argmap ArgumentMap
	parse  func(Output) (T, error)
}

// String renders the command line arguments, options first.
func (c *Command[T]) String() string {
	return strings.Join(c.Slice(), " ")
}

// Slice returns the arguments passed to the shell executable.
func (c *Command[T]) Slice() []string {
	args := make([]string, 0, len(c.argmap)*2+len(c.params)+3)

	options := make([]string, 0, len(c.argmap))
	for arg := range c.argmap {
		options = append(options, string(arg))
	}
	sort.Strings(options)

	for _, option := range options {
		args = append(args, option)
		if value := c.argmap[Argument(option)]; value != "" {
			args = append(args, value)
		}
	}

	if c.cmd == "" {
		return args
	}

	args = append(args, "--")
	args = append(args, strings.Fields(c.cmd)...)

	return append(args, c.params...)
}

func (c *Command[T]) WithArgument(arg Argument, value string) *Command[T] {
	if c.argmap == nil {
		c.argmap = make(ArgumentMap)
	}

	c.argmap[arg] = value

	return c
}

func (c *Command[T]) withParams(params ...string) *Command[T] {
	c.params = append(c.params, params...)

	return c
}

func (c *Command[T]) withParser(parse func(Output) (T, error)) *Command[T] {
	c.parse = parse

	return c
}

// Run invokes the command and returns the raw output.
func (c *Command[T]) Run(ctx context.Context, fn ExecuteFunc) (Output, error) {
	return fn(ctx, c.Slice())
}

// ExecuteWith invokes the command and parses its output into T.
func (c *Command[T]) ExecuteWith(ctx context.Context, fn ExecuteFunc) (T, Output, error) {
	var result T

	out, err := c.Run(ctx, fn)
	if err != nil {
		return result, out, err
	}

	if c.parse == nil {
		return result, out, nil
	}

	result, err = c.parse(out)

	return result, out, err
}
