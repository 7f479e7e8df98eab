package shaders

import (
	"os"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Program is a linked vertex, geometry and fragment shader program.
type Program struct {
	id       uint32
	uniforms map[string]int32
}

// Load reads, compiles and links the three stages. An empty geometry path
// links a vertex and fragment program only.
func Load(vertexPath, geometryPath, fragmentPath string) (*Program, error) {
	stages := []struct {
		path string
		kind uint32
	}{
		{vertexPath, gl.VERTEX_SHADER},
		{geometryPath, gl.GEOMETRY_SHADER},
		{fragmentPath, gl.FRAGMENT_SHADER},
	}

	var compiled []uint32
	defer func() {
		for _, s := range compiled {
			gl.DeleteShader(s)
		}
	}()
	for _, st := range stages {
		if st.path == "" {
			continue
		}
		src, err := os.ReadFile(st.path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading shader %s", st.path)
		}
		s, err := compileShader(string(src), st.kind)
		if err != nil {
			return nil, errors.Wrapf(err, "compiling %s", st.path)
		}
		compiled = append(compiled, s)
	}

	id, err := linkProgram(compiled...)
	if err != nil {
		return nil, err
	}
	return &Program{id: id, uniforms: make(map[string]int32)}, nil
}

// compileShader compiles a single shader
func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)

	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, errors.Errorf("%s", strings.TrimRight(log, "\x00"))
	}

	return shader, nil
}

// linkProgram links compiled stages into a program
func linkProgram(stages ...uint32) (uint32, error) {
	program := gl.CreateProgram()
	for _, s := range stages {
		gl.AttachShader(program, s)
	}
	gl.LinkProgram(program)
	for _, s := range stages {
		gl.DetachShader(program, s)
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, errors.Errorf("link failed: %s", strings.TrimRight(log, "\x00"))
	}

	return program, nil
}

func (p *Program) location(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.uniforms[name] = loc
	return loc
}

func (p *Program) Use() { gl.UseProgram(p.id) }

func (p *Program) SetMat4(name string, m mgl32.Mat4) {
	gl.UniformMatrix4fv(p.location(name), 1, false, &m[0])
}

func (p *Program) SetMat3(name string, m mgl32.Mat3) {
	gl.UniformMatrix3fv(p.location(name), 1, false, &m[0])
}

func (p *Program) SetVec3(name string, v mgl32.Vec3) {
	gl.Uniform3f(p.location(name), v[0], v[1], v[2])
}

func (p *Program) Delete() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}
