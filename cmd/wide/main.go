package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler"
	"github.com/slowlang/wide/compiler/caps"
	"github.com/slowlang/wide/compiler/format"
	"github.com/slowlang/wide/compiler/lanes"
	"github.com/slowlang/wide/compiler/parse"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "print generated code",
		Action:      compileAct,
		Args:        cli.Args{},
	}

	fmtCmd := &cli.Command{
		Name:        "fmt",
		Description: "print shader descriptions in canonical form",
		Action:      fmtAct,
		Args:        cli.Args{},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "run generated code and the per-lane reference",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("input", "", "lane values: name=v0,v1,...;name2=..."),
			cli.NewFlag("active", "", "active lanes: 0,3,7 (default all)"),
		},
	}

	app := &cli.Command{
		Name:        "wide",
		Description: "wide compiles divergent shaders to predicated vector code",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("isa", "", "target isa: scalar, sse4.2, avx, avx2, avx512, neon, host"),
			cli.NewFlag("width", 0, "lanes per group (default per isa)"),
			cli.NewFlag("log", "stderr", "log output file"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			runCmd,
			fmtCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) (err error) {
	var w io.Writer = os.Stderr

	if n := c.String("log"); n != "" && n != "stderr" {
		w, err = os.Create(n)
		if err != nil {
			return errors.Wrap(err, "open log")
		}
	}

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(w, tlog.LstdFlags))

	if v := c.String("verbosity"); v != "" {
		tlog.SetVerbosity(v)
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	t, err := caps.Resolve(c.String("isa"), c.Int("width"))
	if err != nil {
		return errors.Wrap(err, "capabilities")
	}

	for _, a := range c.Args {
		p, err := compiler.CompileFile(ctx, a, t)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		obj, err := p.Listing(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "list %v", a)
		}

		fmt.Printf("%s", obj)
	}

	return nil
}

func fmtAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	var b []byte

	for _, a := range c.Args {
		s, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		b, err = format.Format(ctx, b[:0], s)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		_, err = os.Stdout.Write(b)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	t, err := caps.Resolve(c.String("isa"), c.Int("width"))
	if err != nil {
		return errors.Wrap(err, "capabilities")
	}

	inputs, err := parseInputs(c.String("input"))
	if err != nil {
		return errors.Wrap(err, "inputs")
	}

	active := lanes.All(t.Width)

	if s := c.String("active"); s != "" {
		active, err = parseLanes(t.Width, s)
		if err != nil {
			return errors.Wrap(err, "active")
		}
	}

	for _, a := range c.Args {
		p, err := compiler.CompileFile(ctx, a, t)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		r, err := p.Run(ctx, inputs, active)
		if r != nil {
			for lane, l := range r.Masked {
				if !active.IsSet(lane) {
					continue
				}

				fmt.Printf("%s lane %2d: live %-5v", a, lane, l.Live)

				for _, n := range p.Shader.Vars {
					fmt.Printf(" %s=%d", n, l.Vars[n])
				}

				for _, tr := range l.Trace {
					fmt.Printf(" trace(%s)=%d", tr.Var, tr.Value)
				}

				fmt.Printf("\n")
			}
		}

		if err != nil {
			return errors.Wrap(err, "run %v", a)
		}
	}

	return nil
}

func parseInputs(list string) (map[string][]int32, error) {
	r := map[string][]int32{}

	if list == "" {
		return r, nil
	}

	for _, s := range strings.Split(list, ";") {
		name, vals, ok := strings.Cut(s, "=")
		if !ok {
			return nil, errors.New("expected name=v0,v1,...: %q", s)
		}

		for _, v := range strings.Split(vals, ",") {
			x, err := strconv.ParseInt(strings.TrimSpace(v), 0, 32)
			if err != nil {
				return nil, errors.Wrap(err, "input %v", name)
			}

			r[name] = append(r[name], int32(x))
		}
	}

	return r, nil
}

func parseLanes(w int, s string) (lanes.Set, error) {
	r := lanes.Make(w)

	for _, v := range strings.Split(s, ",") {
		x, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return r, errors.Wrap(err, "lane")
		}

		if x < 0 || x >= w {
			return r, errors.New("lane %d out of range %d", x, w)
		}

		r.Set(x)
	}

	return r, nil
}
