// Package linker compiles a set of scene sources into one build: a scene
// image per source, the globals file, the native dispatch glue and the
// scene table.
package linker

import (
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/pkg/bytecode"
)

var log = commonlog.GetLogger("narrative.linker")

// Source is one scene source. Name is the scene name that [[Name]]
// switches to; Path names the unit in errors and defaults to Name.
type Source struct {
	Name string
	Path string
	Text string
}

func (s Source) unit() string {
	if s.Path != "" {
		return s.Path
	}
	return s.Name
}

// Unit is a linked scene.
type Unit struct {
	Index   int
	Source  Source
	Hash    uint32
	Program *compiler.Program
	Binary  []byte
	Listing string
	Symbols []byte
}

// FileName is the name of the unit's scene image.
func (u *Unit) FileName() string { return fmt.Sprintf("%08d.bin", u.Index) }

// Stats summarizes the VM resources a build needs.
type Stats struct {
	MaxOptions int
	MaxStack   int
}

// Build is the result of a successful link.
type Build struct {
	ID      uuid.UUID
	Units   []*Unit
	Globals *compiler.GlobalTable
	Natives *compiler.Natives
	Scenes  map[string]uint32
	Stats   Stats

	GlobalsFile []byte
	Glue        *Glue
}

// Unit returns the unit of the named scene.
func (b *Build) Unit(scene string) (*Unit, bool) {
	for _, u := range b.Units {
		if u.Source.Name == scene {
			return u, true
		}
	}
	return nil, false
}

// UnitByHash returns the unit a SWITCH literal refers to.
func (b *Build) UnitByHash(h uint32) (*Unit, bool) {
	for _, u := range b.Units {
		if u.Hash == h {
			return u, true
		}
	}
	return nil, false
}

// Linker drives sources through the compiler. Natives is the callable
// native table; Listing and Symbols select the optional per-unit outputs.
type Linker struct {
	Natives *compiler.Natives
	Listing bool
	Symbols bool
}

// New returns a linker producing every optional output.
func New(natives *compiler.Natives) *Linker {
	if natives == nil {
		natives = compiler.NewNatives()
	}
	return &Linker{Natives: natives, Listing: true, Symbols: true}
}

// Link compiles sources in order; a source's position is its scene index.
// Macros and globals are shared by all sources. The first error aborts
// the link.
func (l *Linker) Link(ctx context.Context, sources []Source) (*Build, error) {
	scenes, err := sceneTable(sources)
	if err != nil {
		return nil, err
	}
	log.Infof("linking %d scenes", len(sources))

	// Macro definitions from every source are collected before any source
	// is expanded, so a use may precede its definition's file.
	macros := compiler.NewMacroTable()
	stripped := make([]string, len(sources))
	for i, src := range sources {
		if stripped[i], err = macros.Collect(src.Text); err != nil {
			return nil, compiler.InFile(err, src.unit())
		}
	}
	if n := len(macros.Names()); n > 0 {
		log.Debugf("collected %d macros", n)
	}

	globals := compiler.NewGlobalTable()
	resolved := make([]*compiler.Resolved, len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expanded, err := macros.Expand(stripped[i])
		if err != nil {
			return nil, compiler.InFile(err, src.unit())
		}
		stmts, err := compiler.Parse(expanded)
		if err != nil {
			return nil, compiler.InFile(err, src.unit())
		}
		env := &compiler.Env{
			Unit:    src.unit(),
			Globals: globals,
			Natives: l.Natives,
			Scenes:  scenes,
		}
		if resolved[i], err = compiler.Resolve(stmts, env); err != nil {
			return nil, compiler.InFile(err, src.unit())
		}
	}
	if err := globals.CheckDefined(); err != nil {
		return nil, err
	}
	log.Infof("resolved %d globals", globals.Len())

	units, err := l.generate(ctx, sources, resolved)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		u.Hash = scenes[u.Source.Name]
	}

	b := &Build{
		Units:   units,
		Globals: globals,
		Natives: l.Natives,
		Scenes:  scenes,
	}
	if b.GlobalsFile, err = globalsFile(globals); err != nil {
		return nil, err
	}
	if b.Glue, err = b.glue(); err != nil {
		return nil, err
	}
	for _, u := range units {
		b.Stats.MaxOptions = max(b.Stats.MaxOptions, len(u.Program.Options))
		b.Stats.MaxStack = max(b.Stats.MaxStack, u.Program.MaxStack)
	}
	b.ID = buildID(b)

	if l.Symbols {
		for _, u := range units {
			if u.Symbols, err = marshalSymbols(b.symbolsFor(u)); err != nil {
				return nil, fmt.Errorf("symbols for %s: %w", u.Source.unit(), err)
			}
		}
	}
	log.Infof("build %s: %d options, stack %d", b.ID, b.Stats.MaxOptions, b.Stats.MaxStack)
	return b, nil
}

// generate lowers and encodes every unit. After resolution units share
// nothing mutable, so they run concurrently. The reported error is the
// one of the lowest failing index, independent of scheduling.
func (l *Linker) generate(ctx context.Context, sources []Source, resolved []*compiler.Resolved) ([]*Unit, error) {
	units := make([]*Unit, len(sources))
	errs := make([]error, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			u, err := l.unit(i, sources[i], resolved[i])
			if err != nil {
				errs[i] = err
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
		return nil, err
	}
	return units, nil
}

func (l *Linker) unit(i int, src Source, res *compiler.Resolved) (*Unit, error) {
	p, err := compiler.Generate(res)
	if err != nil {
		return nil, err
	}
	bin, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	u := &Unit{Index: i, Source: src, Program: p, Binary: bin}
	if l.Listing {
		u.Listing = p.Listing()
	}
	log.Debugf("%s: %d instructions, %d options, %d bytes", src.unit(), len(p.Code), len(p.Options), len(bin))
	return u, nil
}

// sceneTable hashes the scene names. Names must be unique and their
// hashes distinct.
func sceneTable(sources []Source) (map[string]uint32, error) {
	scenes := make(map[string]uint32, len(sources))
	byHash := make(map[uint32]string, len(sources))
	for _, src := range sources {
		if src.Name == "" {
			return nil, &compiler.Error{Kind: compiler.SemanticError, File: src.unit(), Msg: "scene has no name"}
		}
		if _, dup := scenes[src.Name]; dup {
			return nil, &compiler.Error{Kind: compiler.SemanticError, File: src.unit(),
				Msg: fmt.Sprintf("scene %s defined twice", src.Name)}
		}
		h := compiler.NameHash(src.Name)
		if other, clash := byHash[h]; clash {
			return nil, &compiler.Error{Kind: compiler.SemanticError, File: src.unit(),
				Msg: fmt.Sprintf("scene %s hash %#08x collides with scene %s", src.Name, h, other)}
		}
		scenes[src.Name] = h
		byHash[h] = src.Name
	}
	return scenes, nil
}

func globalsFile(globals *compiler.GlobalTable) ([]byte, error) {
	vars := globals.Variables()
	values := make([]int64, len(vars))
	for i, v := range vars {
		values[i] = v.Value.Int
	}
	b, err := bytecode.MarshalGlobals(values)
	if err != nil {
		return nil, &compiler.Error{Kind: compiler.SerializationError, File: "global.bin", Msg: err.Error(), Err: err}
	}
	return b, nil
}

// buildID derives a name-based UUID from the build outputs, so the same
// sources always produce the same id.
func buildID(b *Build) uuid.UUID {
	h := sha1.New()
	for _, u := range b.Units {
		fmt.Fprintf(h, "%s\x00%d\x00", u.Source.Name, len(u.Binary))
		h.Write(u.Binary)
	}
	h.Write(b.GlobalsFile)
	return uuid.NewSHA1(uuid.NameSpaceOID, h.Sum(nil))
}
