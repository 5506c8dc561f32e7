package glbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

const VersionStr = "#version 460\n"

// Shader stores information for automatically generating fragment shader pipelines
// and evaluating them correctly on a GPU.
type Shader interface {
	// AppendShaderName appends the name of the GL shader function
	// to the buffer and returns the result. It should be unique to that shader.
	AppendShaderName(b []byte) []byte
	// AppendShaderBody appends the body of the shader function to the
	// buffer and returns the result.
	AppendShaderBody(b []byte) []byte
	// AppendShaderObjects appends "objects" (read as data) needed to
	// evaluate the shader correctly. See [ShaderObject] for more information
	// on what an object can represent.
	AppendShaderObjects(objs []ShaderObject) []ShaderObject
}

// Fragment can create shader source code for a color lookup over the unit square.
// The generated GL function has the signature:
//
//	vec4 <name>(vec2 uv)
//
// where uv is a surface coordinate in [0,1]x[0,1] with origin at the bottom-left.
type Fragment interface {
	Shader
	// ForEachChild iterates over the Fragment's direct Fragment children.
	// Coordinate transforms such as displacements have one child, the fragment being sampled.
	ForEachChild(userData any, fn func(userData any, s *Fragment) error) error
}

// ObjectKind enumerates the kinds of data a [ShaderObject] can represent.
type ObjectKind uint8

const (
	_ ObjectKind = iota
	// ObjFunction is a GLSL helper function shared among shaders.
	ObjFunction
	// ObjUniform is a single float uniform updated by the host between frames.
	ObjUniform
	// ObjSampler2D is a 2D texture sampler uniform.
	ObjSampler2D
)

func (k ObjectKind) String() string {
	switch k {
	case ObjFunction:
		return "function"
	case ObjUniform:
		return "uniform float"
	case ObjSampler2D:
		return "uniform sampler2D"
	}
	return "ObjectKind(" + strconv.Itoa(int(k)) + ")"
}

// ShaderObject is a handle to data needed to evaluate a [Shader] correctly.
// A ShaderObject could represent any of the following:
//   - Function. GLSL source shared by several shaders, written once.
//   - Shader uniform. Is a single float value set by the host every frame.
//   - Texture. Represents 2D data, usually images, bound to a sampler2D uniform.
type ShaderObject struct {
	// NamePtr is a pointer to the name of the object inside of the [Shader].
	NamePtr []byte
	Kind    ObjectKind
	// Value is the uniform's initial value. Hosts with no uniform
	// support (ShaderToy) get this value baked in as a constant.
	Value float32
	// Builtin names the ShaderToy input this object maps to, i.e. "iTime" or "iChannel0".
	// Empty if the object has no ShaderToy counterpart.
	Builtin string
	// for function shaders.
	funcSource []byte
}

func (obj ShaderObject) IsFunction() bool { return obj.Kind == ObjFunction }
func (obj ShaderObject) IsUniform() bool  { return obj.Kind == ObjUniform || obj.Kind == ObjSampler2D }

// Validate checks the object is well formed for GLSL generation.
func (obj ShaderObject) Validate() error {
	if len(obj.NamePtr) == 0 {
		return errors.New("shader object name cannot be empty")
	}
	for i, c := range obj.NamePtr {
		isAlpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isAlpha && (i == 0 || !isDigit) {
			return fmt.Errorf("invalid shader object name %q", obj.NamePtr)
		}
	}
	switch obj.Kind {
	case ObjFunction:
		if len(obj.funcSource) == 0 {
			return errors.New("function shader object missing source")
		}
	case ObjUniform, ObjSampler2D:
	default:
		return fmt.Errorf("invalid %s for %q", obj.Kind.String(), obj.NamePtr)
	}
	return nil
}

// MakeShaderFunction parses a GLSL function definition and returns it as a [ShaderObject].
func MakeShaderFunction(shaderDef []byte) (sf ShaderObject, err error) {
	shaderDef = bytes.TrimSpace(shaderDef)
	fnNameEnd := bytes.IndexByte(shaderDef, '(')
	fnNameStart := bytes.IndexByte(shaderDef, ' ')
	if fnNameEnd < 0 || fnNameStart < 0 || fnNameStart > fnNameEnd {
		return ShaderObject{}, errors.New("unable to parse function name")
	}
	name := shaderDef[fnNameStart:fnNameEnd]
	name = bytes.TrimSpace(name)
	if len(name) == 0 {
		return ShaderObject{}, errors.New("empty function name")
	}
	sf = ShaderObject{
		NamePtr:    name,
		Kind:       ObjFunction,
		funcSource: shaderDef,
	}
	return sf, nil
}

// MakeUniform1f returns a float uniform object with an initial value. builtin
// may name the ShaderToy input that replaces the uniform, or be empty.
func MakeUniform1f(name string, initial float32, builtin string) (ShaderObject, error) {
	obj := ShaderObject{
		NamePtr: []byte(name),
		Kind:    ObjUniform,
		Value:   initial,
		Builtin: builtin,
	}
	return obj, obj.Validate()
}

// MakeSampler2D returns a sampler2D uniform object.
func MakeSampler2D(name, builtin string) (ShaderObject, error) {
	obj := ShaderObject{
		NamePtr: []byte(name),
		Kind:    ObjSampler2D,
		Builtin: builtin,
	}
	return obj, obj.Validate()
}

// Programmer implements shader generation logic for Shader type.
type Programmer struct {
	scratchNodes []Shader
	scratch      []byte
	objsScratch  []ShaderObject
	// names maps shader names to body hashes for checking duplicates.
	names map[uint64]uint64
	// Invocations size in X (local group size) to give each compute work group.
	invocX int
}

// objStyle selects how uniform objects are declared.
type objStyle uint8

const (
	styleUniform objStyle = iota
	styleShaderToy
)

// NewDefaultProgrammer returns a Programmer with reasonable default parameters for use with glgl package on the local machine.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		scratchNodes: make([]Shader, 16),
		scratch:      make([]byte, 1024),
		names:        make(map[uint64]uint64),
		invocX:       32,
	}
}

// SetComputeInvocations sets the work group local-sizes. x*y*z must be less than maximum number of invocations.
func (p *Programmer) SetComputeInvocations(x, y, z int) {
	if y != 1 || z != 1 {
		panic("unsupported")
	} else if x < 1 {
		panic("zero or negative X invocation size")
	}
	p.invocX = x
}

// ComputeInvocations returns the worker group invocation size in x y and z.
func (p *Programmer) ComputeInvocations() (int, int, int) {
	return p.invocX, 1, 1
}

// VertexQuadSource is the vertex program paired with [Programmer.WriteFragmentProgram].
// It expects a full-screen quad in clip space on attribute aPos and passes
// surface coordinates in [0,1] to the fragment stage.
const VertexQuadSource = `#version 460
in vec2 aPos;
out vec2 vTexCoord;
void main() {
    vTexCoord = aPos * 0.5 + 0.5;
    gl_Position = vec4(aPos, 0.0, 1.0);
}
`

// WriteFragmentProgram writes a complete fragment program that colors each
// fragment of a full-screen quad with the root fragment.
func (p *Programmer) WriteFragmentProgram(w io.Writer, obj Fragment) (n int, objs []ShaderObject, err error) {
	n, err = io.WriteString(w, VersionStr)
	if err != nil {
		return n, nil, err
	}
	baseName, ngot, objs, err := p.writeDecl(w, obj, styleUniform)
	n += ngot
	if err != nil {
		return n, objs, err
	}
	ngot, err = fmt.Fprintf(w, `
in vec2 vTexCoord;
out vec4 fragColor;

void main() {
	fragColor = %s(vTexCoord);
}
`, baseName)
	n += ngot
	return n, objs, err
}

// WriteComputeFragment creates the bare bones I/O compute program for evaluating
// a fragment over a buffer of surface coordinates and writes it to the writer.
// The result is in glgl combined source format.
func (p *Programmer) WriteComputeFragment(w io.Writer, obj Fragment) (n int, objs []ShaderObject, err error) {
	n, err = io.WriteString(w, "#shader compute\n#version 430\n")
	if err != nil {
		return n, nil, err
	}
	baseName, ngot, objs, err := p.writeDecl(w, obj, styleUniform)
	n += ngot
	if err != nil {
		return n, objs, err
	}
	ngot, err = fmt.Fprintf(w, `

layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

// Input: surface coordinates at which to sample the fragment.
layout(std430, binding = 0) buffer PositionsBuffer {
    vec2 vbo_positions[];
};

// Output: sampled colors. Maps to position buffer.
layout(std430, binding = 1) buffer ColorsBuffer {
    vec4 vbo_colors[];
};

void main() {
	int idx = int( gl_GlobalInvocationID.x );
	if (idx >= vbo_positions.length()) {
		return;
	}
	vec2 uv = vbo_positions[idx];   // Get coordinate to sample at.
	vbo_colors[idx] = %s(uv);       // Sample fragment and store to color buffer.
}
`, p.invocX, baseName)
	n += ngot
	return n, objs, err
}

// WriteShaderToy generates a program that can be pasted into ShaderToy. Uniforms with a
// builtin counterpart are aliased to it (uTime to iTime, textures to iChannel0), the
// rest are baked in as constants with their current value.
func (p *Programmer) WriteShaderToy(w io.Writer, obj Fragment) (n int, objs []ShaderObject, err error) {
	baseName, n, objs, err := p.writeDecl(w, obj, styleShaderToy)
	if err != nil {
		return n, objs, err
	}
	ngot, err := fmt.Fprintf(w, `
void mainImage(out vec4 fragColor, in vec2 fragCoord) {
	fragColor = %s(fragCoord / iResolution.xy);
}
`, baseName)
	n += ngot
	return n, objs, err
}

// WriteFragmentDecl writes the fragment shader function declarations, preceded by their
// uniform and function objects, and returns the top-level fragment function name.
func (p *Programmer) WriteFragmentDecl(w io.Writer, s Fragment) (baseName string, n int, objs []ShaderObject, err error) {
	return p.writeDecl(w, s, styleUniform)
}

func (p *Programmer) writeDecl(w io.Writer, s Fragment, style objStyle) (baseName string, n int, objs []ShaderObject, err error) {
	baseName, nodes, err := ParseAppendNodes(p.scratchNodes[:0], s)
	if err != nil {
		return "", 0, nil, err
	}
	p.scratchNodes = nodes[:0]
	n, objs, err = p.writeShaders(w, nodes, style)
	if err != nil {
		return "", n, objs, err
	}
	return baseName, n, objs, nil
}

func (p *Programmer) writeShaders(w io.Writer, nodes []Shader, style objStyle) (n int, objs []ShaderObject, err error) {
	clear(p.names)
	p.scratch = p.scratch[:0]
	p.objsScratch = p.objsScratch[:0]
	objIdx := 0
	for i := len(nodes) - 1; i >= 0; i-- {
		// Start by generating all Shader Objects.
		node := nodes[i]
		p.objsScratch = node.AppendShaderObjects(p.objsScratch)
		newObjs := p.objsScratch[objIdx:]
		kept := objIdx
	OBJWRITE:
		for j := range newObjs {
			obj := newObjs[j]
			if err := obj.Validate(); err != nil {
				return n, nil, fmt.Errorf("%T: %w", node, err)
			}
			nameHash := hash(obj.NamePtr, 0)
			if _, nameConflict := p.names[nameHash]; nameConflict {
				for _, old := range p.objsScratch[:kept] {
					if !bytes.Equal(old.NamePtr, obj.NamePtr) {
						continue
					}
					if old.Kind == obj.Kind && bytes.Equal(old.funcSource, obj.funcSource) {
						continue OBJWRITE // Identical object already declared.
					}
					return n, nil, fmt.Errorf("shader object name conflict: %T declares %s %q which conflicts with %s of same name", node, obj.Kind, obj.NamePtr, old.Kind)
				}
				return n, nil, fmt.Errorf("%T object %q conflicts with a shader of the same name", node, obj.NamePtr)
			}
			p.names[nameHash] = nameHash
			p.objsScratch[kept] = obj
			kept++
		}
		p.objsScratch = p.objsScratch[:kept]
		objIdx = kept
	}
	// Uniforms first so that functions and shaders may reference them.
	for _, obj := range p.objsScratch {
		if obj.IsUniform() {
			p.scratch = appendObjectDecl(p.scratch, obj, style)
		}
	}
	for _, obj := range p.objsScratch {
		if obj.IsFunction() {
			p.scratch = append(p.scratch, obj.funcSource...)
			p.scratch = append(p.scratch, '\n', '\n')
		}
	}
	if len(p.scratch) > 0 {
		ngot, err := w.Write(p.scratch)
		n += ngot
		if err != nil {
			return n, nil, err
		}
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		var name, body []byte
		p.scratch, name, body = AppendShaderSource(p.scratch[:0], node)
		nameHash := hash(name, 0)
		bodyHash := hash(body, nameHash) // Body hash mixes name as well.
		gotBodyHash, nameConflict := p.names[nameHash]
		if nameConflict {
			// Name already exists in tree, check if bodies are identical.
			if bodyHash == gotBodyHash {
				continue // Shader already written and is identical, skip.
			}
			return n, nil, fmt.Errorf("duplicate %T shader name %q w/ body:\n%s\n\nconflicts with distinct shader or object with same name", node, name, body)
		}
		p.names[nameHash] = bodyHash
		ngot, err := w.Write(p.scratch)
		n += ngot
		if err != nil {
			return n, nil, err
		}
	}
	objs = append(objs[:0], p.objsScratch...) // Clone slice and return it.
	return n, objs, err
}

func appendObjectDecl(b []byte, obj ShaderObject, style objStyle) []byte {
	if style == styleShaderToy {
		if obj.Builtin != "" {
			b = AppendDefineDecl(b, string(obj.NamePtr), obj.Builtin)
			return b
		} else if obj.Kind == ObjUniform {
			b = append(b, "const "...)
			return AppendFloatDecl(b, string(obj.NamePtr), obj.Value)
		}
		// Sampler without builtin: fall back to first channel.
		return AppendDefineDecl(b, string(obj.NamePtr), "iChannel0")
	}
	b = append(b, obj.Kind.String()...)
	b = append(b, ' ')
	b = append(b, obj.NamePtr...)
	b = append(b, ';', '\n')
	return b
}

// ParseAppendNodes parses the shader object tree and appends all nodes in Breadth First order
// to the dst Shader argument buffer and returns the result.
func ParseAppendNodes(dst []Shader, root Fragment) (baseName string, nodes []Shader, err error) {
	if root == nil {
		return "", nil, errors.New("nil shader object")
	}
	baseName = string(root.AppendShaderName([]byte{}))
	if baseName == "" {
		return "", nil, errors.New("empty shader name")
	}
	dst, err = AppendAllNodes(dst, root)
	if err != nil {
		return "", nil, err
	}
	return baseName, dst, nil
}

// AppendShaderSource appends the GL code of a single shader to the dst byte buffer.  If dst's
// capacity is grown during the writing the buffer with augmented capacity is returned. If not the same input dst is returned.
// name and body byte slices pointing to the result buffer are also returned for convenience.
func AppendShaderSource(dst []byte, s Shader) (result, name, body []byte) {
	dst = append(dst, "vec4 "...)
	nameStart := len(dst)
	dst = s.AppendShaderName(dst)
	nameEnd := len(dst)
	dst = append(dst, "(vec2 uv){\n"...)
	bodyStart := len(dst)
	dst = s.AppendShaderBody(dst)
	bodyEnd := len(dst)
	dst = append(dst, "\n}\n\n"...)
	return dst, dst[nameStart:nameEnd], dst[bodyStart:bodyEnd]
}

// AppendAllNodes BFS iterates over all of root's descendants and appends all nodes
// found to dst.
//
// To generate shaders one must iterate over nodes in reverse order to ensure
// the first iterated nodes are the nodes with no dependencies on other nodes.
func AppendAllNodes(dst []Shader, root Fragment) ([]Shader, error) {
	var userData any
	children := []Fragment{root}
	nextChild := 0
	nilChild := errors.New("got nil child in AppendAllNodes")
	for len(children[nextChild:]) > 0 {
		newChildren := children[nextChild:]
		for _, obj := range newChildren {
			nextChild++
			err := obj.ForEachChild(userData, func(userData any, s *Fragment) error {
				if s == nil || *s == nil {
					return nilChild
				}
				children = append(children, *s)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	for _, c := range children {
		dst = append(dst, c)
	}
	return dst, nil
}

func forEachNodeDFS(obj Fragment, fnEnter, fnExit func(s Fragment) error) (err error) {
	if err = fnEnter(obj); err != nil {
		return err
	}
	err = obj.ForEachChild(nil, func(userData any, s *Fragment) error {
		return forEachNodeDFS(*s, fnEnter, fnExit)
	})
	if err != nil {
		return err
	}
	return fnExit(obj)
}

func countDirectChildren(obj Fragment) (directChildren int) {
	obj.ForEachChild(nil, func(userData any, s *Fragment) error {
		directChildren++
		return nil
	})
	return directChildren
}

// FormatShader returns a compact description of the fragment tree, i.e. "Effect(Sampler)".
func FormatShader(sh Fragment) string {
	if sh == nil {
		panic("nil shader")
	}
	prevWasLeaf := false
	var sb strings.Builder
	err := forEachNodeDFS(sh, func(s Fragment) error {
		if prevWasLeaf {
			sb.WriteByte(',')
		}
		tp := reflect.TypeOf(s)
		if tp.Kind() == reflect.Pointer {
			tp = tp.Elem()
		}
		sb.WriteString(tp.Name())
		if countDirectChildren(s) != 0 {
			sb.WriteByte('(')
		}
		return nil
	}, func(s Fragment) error {
		isLeaf := countDirectChildren(s) == 0
		if !isLeaf {
			sb.WriteByte(')')
		}
		prevWasLeaf = isLeaf
		return nil
	})
	if err != nil {
		return err.Error()
	}
	return sb.String()
}

func AppendDefineDecl(b []byte, aliasToDefine, aliasReplace string) []byte {
	b = append(b, "#define "...)
	b = append(b, aliasToDefine...)
	b = append(b, ' ')
	b = append(b, aliasReplace...)
	b = append(b, '\n')
	return b
}

// AppendSampleDecl appends a color variable declaration sampling s at the uv expression.
//
//	vec4 <colorVarname>=<s name>(<uvArgInput>);
func AppendSampleDecl(b []byte, colorVarname, uvArgInput string, s Shader) []byte {
	b = append(b, "vec4 "...)
	b = append(b, colorVarname...)
	b = append(b, '=')
	b = s.AppendShaderName(b)
	b = append(b, '(')
	b = append(b, uvArgInput...)
	b = append(b, ");\n"...)
	return b
}

func AppendFloatDecl(b []byte, floatVarname string, v float32) []byte {
	b = append(b, "float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = AppendFloat(b, '-', '.', v)
	b = append(b, ';', '\n')
	return b
}

const decimalDigits = 9

// AppendFloat appends v in fixed notation. neg and decimal replace the
// minus sign and decimal point so the result can be used inside identifiers.
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	// Finally trim zeroes.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start+1 && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
