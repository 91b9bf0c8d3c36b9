package linker

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/chazu/narrative/compiler"
)

// Glue holds the generated C sources that bind a build to the VM: the
// native dispatch and the scene table.
type Glue struct {
	CallHeader  string // call_interface.h
	CallSource  string // call_interface.c
	SceneHeader string // scene_interface.h
	SceneSource string // scene_interface.c
}

// Files maps each glue file name to its content.
func (g *Glue) Files() map[string]string {
	return map[string]string{
		"call_interface.h":  g.CallHeader,
		"call_interface.c":  g.CallSource,
		"scene_interface.h": g.SceneHeader,
		"scene_interface.c": g.SceneSource,
	}
}

var glueFuncs = template.FuncMap{
	"ctype": cType,
	"args": func(n int) string {
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("a%d", i)
		}
		return strings.Join(names, ", ")
	},
	"params": func(p *compiler.FunctionPrototype) string {
		if len(p.Params) == 0 {
			return "void"
		}
		types := make([]string, len(p.Params))
		for i, t := range p.Params {
			types[i] = cType(t)
		}
		return strings.Join(types, ", ")
	},
	"cast": func(t compiler.ValueType) string {
		if t == compiler.TypeStringPtr {
			return "(stack_t)"
		}
		return ""
	},
}

var callHeader = template.Must(template.New("call_interface.h").Parse(`#ifndef CALL_INTERFACE_H
#define CALL_INTERFACE_H

#include <stdint.h>

#include "virtual_machine.h"

void vm_call_function(VirtualMachine *vm, uint32_t hash);

#endif
`))

var callSource = template.Must(template.New("call_interface.c").Funcs(glueFuncs).Parse(`#include <stdio.h>
#include <stdlib.h>

#include "stack.h"
#include "call_interface.h"
{{range .}}
extern {{ctype .Returns}} {{.Name}}({{params .}});{{end}}

void vm_call_function(VirtualMachine *vm, uint32_t hash) {
    switch (hash) {
{{- range .}}
    case {{.Hash}}: { /* {{.}} */
{{- range $i, $t := .Params}}
        {{ctype $t}} a{{$i}} = ({{ctype $t}})stack_pop(&(vm->stack));
{{- end}}
        stack_push(&(vm->stack), {{cast .Returns}}{{.Name}}({{args (len .Params)}}));
        break;
    }
{{- end}}
    default:
        printf("Unknown function hash %u\n", hash);
        exit(1);
    }
}
`))

var sceneHeader = template.Must(template.New("scene_interface.h").Parse(`#ifndef SCENE_INTERFACE_H
#define SCENE_INTERFACE_H

#include <stdint.h>

const char *scene_file(uint32_t hash);

#endif
`))

var sceneSource = template.Must(template.New("scene_interface.c").Parse(`#include <stdio.h>
#include <stdlib.h>

#include "scene_interface.h"

const char *scene_file(uint32_t hash) {
    switch (hash) {
{{- range .}}
    case {{.Hash}}: /* {{.Source.Name}} */
        return "{{.FileName}}";
{{- end}}
    default:
        printf("Unknown scene hash %u\n", hash);
        exit(1);
    }
}
`))

func cType(t compiler.ValueType) string {
	if t == compiler.TypeStringPtr {
		return "uint16_t *"
	}
	return "int32_t"
}

// calledNatives returns the natives some unit calls, by ascending hash.
func (b *Build) calledNatives() ([]*compiler.FunctionPrototype, error) {
	seen := make(map[uint32]bool)
	var out []*compiler.FunctionPrototype
	for _, u := range b.Units {
		for _, h := range u.Program.Calls {
			if seen[h] {
				continue
			}
			seen[h] = true
			p, ok := b.Natives.ByHash(h)
			if !ok {
				return nil, &compiler.Error{Kind: compiler.InternalError, File: u.Source.unit(),
					Msg: fmt.Sprintf("call to unknown native hash %#08x", h)}
			}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

func (b *Build) glue() (*Glue, error) {
	natives, err := b.calledNatives()
	if err != nil {
		return nil, err
	}
	units := append([]*Unit(nil), b.Units...)
	sort.Slice(units, func(i, j int) bool { return units[i].Hash < units[j].Hash })

	g := &Glue{}
	for _, t := range []struct {
		tmpl *template.Template
		data interface{}
		out  *string
	}{
		{callHeader, nil, &g.CallHeader},
		{callSource, natives, &g.CallSource},
		{sceneHeader, nil, &g.SceneHeader},
		{sceneSource, units, &g.SceneSource},
	} {
		var sb strings.Builder
		if err := t.tmpl.Execute(&sb, t.data); err != nil {
			return nil, fmt.Errorf("generating %s: %w", t.tmpl.Name(), err)
		}
		*t.out = sb.String()
	}
	return g, nil
}
