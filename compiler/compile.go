package compiler

// Compile runs the whole pipeline over a single self-contained unit:
// macros, parsing, resolution and code generation. Globals the unit
// declares must also be defined by it. Multi-unit builds go through the
// linker, which shares macros and globals between units.
func Compile(name, src string, env *Env) (*Program, error) {
	if env == nil {
		env = &Env{}
	}
	env.Unit = name

	expanded, err := Preprocess(src)
	if err != nil {
		return nil, InFile(err, name)
	}
	stmts, err := Parse(expanded)
	if err != nil {
		return nil, InFile(err, name)
	}
	res, err := Resolve(stmts, env)
	if err != nil {
		return nil, InFile(err, name)
	}
	if err := env.Globals.CheckDefined(); err != nil {
		return nil, InFile(err, name)
	}
	return Generate(res)
}
