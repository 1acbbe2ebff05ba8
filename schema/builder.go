package schema

import "fmt"

// Builder assembles a Spec incrementally. It is the target a schema parser
// (out of scope for this module) drives; callers construct a fully formed
// Spec by calling AddClass/AddVariable/AddMethod/AddArgument in any order
// that respects parent-before-child, then Build.
type Builder struct {
	classes      []*Class
	classByName  map[string]*Class
	methods      []*Method
	methodByName map[string]*Method
	err          error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		classByName:  make(map[string]*Class),
		methodByName: make(map[string]*Method),
	}
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

// AddClass declares a new class. parentName may be empty for a root class.
// The parent, if named, must already have been added. Returns the new
// class so callers can immediately add variables to it.
func (b *Builder) AddClass(name, parentName string) *Class {
	if b.err != nil {
		return nil
	}
	if name == "" {
		b.fail("schema: class name must not be empty")
		return nil
	}
	if _, exists := b.classByName[name]; exists {
		b.fail("schema: duplicate class name %q", name)
		return nil
	}
	if len(b.classes) >= MaxClasses {
		b.fail("schema: too many classes (max %d)", MaxClasses)
		return nil
	}

	var parent *Class
	vars := []*Variable{}
	varByName := make(map[string]*Variable)
	if parentName != "" {
		p, ok := b.classByName[parentName]
		if !ok {
			b.fail("schema: class %q declares unknown parent %q", name, parentName)
			return nil
		}
		parent = p
		vars = append(vars, parent.Variables...)
		for k, v := range parent.varByName {
			varByName[k] = v
		}
	}

	c := &Class{
		Ordinal:   len(b.classes),
		Name:      name,
		Parent:    parent,
		Variables: vars,
		varByName: varByName,
	}
	b.classes = append(b.classes, c)
	b.classByName[name] = c
	return c
}

// AddVariable appends a variable to class. Variables must be added in
// ordinal order; inherited variables (already present from the parent) are
// not re-added here.
func (b *Builder) AddVariable(c *Class, name string, t ValueType) *Variable {
	if b.err != nil || c == nil {
		return nil
	}
	if name == "" {
		b.fail("schema: variable name must not be empty on class %q", c.Name)
		return nil
	}
	if _, exists := c.varByName[name]; exists {
		b.fail("schema: duplicate variable name %q on class %q", name, c.Name)
		return nil
	}
	if len(c.Variables) >= MaxVariables {
		b.fail("schema: class %q has too many variables (max %d)", c.Name, MaxVariables)
		return nil
	}

	v := &Variable{
		Ordinal: len(c.Variables),
		Name:    name,
		Type:    t,
	}
	c.Variables = append(c.Variables, v)
	c.varByName[name] = v
	return v
}

// AddMethod declares a new method.
func (b *Builder) AddMethod(name string) *Method {
	if b.err != nil {
		return nil
	}
	if name == "" {
		b.fail("schema: method name must not be empty")
		return nil
	}
	if _, exists := b.methodByName[name]; exists {
		b.fail("schema: duplicate method name %q", name)
		return nil
	}
	if len(b.methods) >= MaxMethods {
		b.fail("schema: too many methods (max %d)", MaxMethods)
		return nil
	}

	m := &Method{
		Ordinal:   len(b.methods),
		Name:      name,
		argByName: make(map[string]*Argument),
	}
	b.methods = append(b.methods, m)
	b.methodByName[name] = m
	return m
}

// AddArgument appends an argument to method m.
func (b *Builder) AddArgument(m *Method, name string, t ValueType) *Argument {
	if b.err != nil || m == nil {
		return nil
	}
	if name == "" {
		b.fail("schema: argument name must not be empty on method %q", m.Name)
		return nil
	}
	if _, exists := m.argByName[name]; exists {
		b.fail("schema: duplicate argument name %q on method %q", name, m.Name)
		return nil
	}
	if len(m.Arguments) >= MaxArguments {
		b.fail("schema: method %q has too many arguments (max %d)", m.Name, MaxArguments)
		return nil
	}

	a := &Argument{
		Ordinal: len(m.Arguments),
		Name:    name,
		Type:    t,
	}
	m.Arguments = append(m.Arguments, a)
	m.argByName[name] = a
	return a
}

// Build finalizes the Spec, computing its content hash. It returns the
// first error encountered by any Add* call, if any.
func (b *Builder) Build() (*Spec, error) {
	if b.err != nil {
		return nil, b.err
	}

	s := &Spec{
		Classes:      b.classes,
		Methods:      b.methods,
		classByName:  b.classByName,
		methodByName: b.methodByName,
	}
	s.hash = computeHash(s.Classes, s.Methods)
	return s, nil
}
