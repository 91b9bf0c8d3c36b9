package compiler

import (
	"sort"
)

// SymbolTable is the per-unit variable table built by the resolver.
type SymbolTable struct {
	vars   []*Variable
	byName map[Identifier]*Variable
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[Identifier]*Variable)}
}

// Lookup returns the variable named id.
func (t *SymbolTable) Lookup(id Identifier) (*Variable, bool) {
	v, ok := t.byName[id]
	return v, ok
}

// Define adds a new variable. The caller checks for redefinition.
func (t *SymbolTable) Define(scope Scope, id Identifier, value Value, site Position) *Variable {
	v := &Variable{Scope: scope, Name: id, Value: value, Index: len(t.vars), Site: site}
	t.vars = append(t.vars, v)
	t.byName[id] = v
	return v
}

// Variables returns the variables in table order.
func (t *SymbolTable) Variables() []*Variable {
	return t.vars
}

// Len returns the number of variables.
func (t *SymbolTable) Len() int { return len(t.vars) }

// SortByScope orders variables by scope, keeping insertion order within a
// scope.
func (t *SymbolTable) SortByScope() {
	sort.SliceStable(t.vars, func(i, j int) bool {
		return t.vars[i].Scope < t.vars[j].Scope
	})
}

// ---------------------------------------------------------------------------
// Global table shared by every unit of a link
// ---------------------------------------------------------------------------

// GlobalTable is the link-wide global variable namespace. It is built
// sequentially while units are resolved and is read-only afterwards.
type GlobalTable struct {
	vars   []*Variable
	byName map[Identifier]*Variable
}

// NewGlobalTable returns an empty table.
func NewGlobalTable() *GlobalTable {
	return &GlobalTable{byName: make(map[Identifier]*Variable)}
}

// Lookup returns the global named id.
func (g *GlobalTable) Lookup(id Identifier) (*Variable, bool) {
	v, ok := g.byName[id]
	return v, ok
}

// Variables returns the globals in index order.
func (g *GlobalTable) Variables() []*Variable {
	return g.vars
}

// Len returns the number of globals.
func (g *GlobalTable) Len() int { return len(g.vars) }

// Declare records GLOBAL name; A declaration never changes an existing
// entry.
func (g *GlobalTable) Declare(id Identifier, unit string, pos Position) *Variable {
	if v, ok := g.byName[id]; ok {
		return v
	}
	return g.add(ScopeGlobalDeclare, id, IntValue(0), unit, pos)
}

// Define records GLOBAL name = value; A definition upgrades an earlier
// declaration in place, keeping its index. Defining twice is an error.
func (g *GlobalTable) Define(id Identifier, value Value, unit string, pos Position) (*Variable, error) {
	v, ok := g.byName[id]
	if !ok {
		return g.add(ScopeGlobalDefine, id, value, unit, pos), nil
	}
	if v.Scope == ScopeGlobalDefine {
		return nil, errorAt(SemanticError, pos, "GLOBAL %s already defined in %s", id, v.Unit)
	}
	v.Scope = ScopeGlobalDefine
	v.Value = value
	v.Site = pos
	v.Unit = unit
	return v, nil
}

func (g *GlobalTable) add(scope Scope, id Identifier, value Value, unit string, pos Position) *Variable {
	v := &Variable{Scope: scope, Name: id, Value: value, Index: len(g.vars), Site: pos, Unit: unit}
	g.vars = append(g.vars, v)
	g.byName[id] = v
	return v
}

// CheckDefined verifies every global received a definition.
func (g *GlobalTable) CheckDefined() error {
	for _, v := range g.vars {
		if v.Scope != ScopeGlobalDefine {
			err := errorAt(SemanticError, v.Site, "GLOBAL %s is declared but never defined", v.Name)
			err.File = v.Unit
			return err
		}
	}
	return nil
}
