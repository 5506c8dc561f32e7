//go:build !tinygo && cgo

package rippleaux

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/ripple"
	"github.com/soypat/ripple/glbuild"
	"github.com/soypat/ripple/gleval"
)

func ui(eff *ripple.Effect, cfg UIConfig) error {
	log := cfg.Log
	driver, err := newUIDriver(cfg, ripple.SystemClock())
	if err != nil {
		return err
	}
	window, term, err := startGLFW(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return err
	}
	defer term()

	var fragSrc bytes.Buffer
	programmer := glbuild.NewDefaultProgrammer()
	_, _, err = programmer.WriteFragmentProgram(&fragSrc, eff)
	if err != nil {
		return err
	}
	fragSrc.WriteByte(0)
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   glbuild.VertexQuadSource + "\x00",
		Fragment: fragSrc.String(),
	})
	if err != nil {
		return fmt.Errorf("%s\n\n%w", fragSrc.String(), err)
	}
	defer prog.Delete()
	prog.Bind()

	// Define a quad covering the screen
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	vertices := []float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		-1.0, 1.0,
		1.0, -1.0,
		1.0, 1.0,
	}
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	posAttrib, err := prog.AttribLocation("aPos\x00")
	if err != nil {
		return err
	}
	gl.EnableVertexAttribArray(posAttrib)
	gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))

	tex, err := ripple.SourceTexture(eff)
	if err != nil {
		return err
	}
	texID, err := gleval.UploadTexture(tex.Image(), tex.Filter() == ripple.FilterBilinear)
	if err != nil {
		return err
	}
	defer gl.DeleteTextures(1, &texID)
	texLoc, err := prog.UniformLocation(ripple.UniformTexture + "\x00")
	if err != nil {
		return err
	}
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, texID)
	gl.Uniform1i(texLoc, 0)

	locs := make(map[string]int32)
	var locErr error
	eff.Params.ForEachUniform(func(name string, _ float32) {
		loc, err := prog.UniformLocation(name + "\x00")
		if err != nil && locErr == nil {
			locErr = fmt.Errorf("uniform %q: %w", name, err)
		}
		locs[name] = loc
	})
	if locErr != nil {
		return locErr
	}

	quit := false
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		k := glfwKey(key)
		if k == keyNone {
			return
		}
		if handleKey(k, mods&glfw.ModShift != 0, driver) {
			quit = true
		}
		log.Debug().Stringer("params", cfg.Store.Load()).Bool("paused", driver.Paused()).Msg("key")
	})
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		gl.Viewport(0, 0, int32(width), int32(height))
	})
	fbw, fbh := window.GetFramebufferSize()
	gl.Viewport(0, 0, int32(fbw), int32(fbh))

	ctx := cfg.Context
	lastTitle := time.Time{}
	log.Info().Str("title", cfg.Title).Msg("viewer started")
	for !window.ShouldClose() && !quit {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		p := driver.Tick()
		eff.Params = p
		gl.ClearColor(0.0, 0.0, 0.0, 1.0)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		prog.Bind()
		p.ForEachUniform(func(name string, v float32) {
			gl.Uniform1f(locs[name], v)
		})
		gl.BindVertexArray(vao)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		window.SwapBuffers()
		if time.Since(lastTitle) > 250*time.Millisecond {
			window.SetTitle(cfg.Title + " | " + p.String())
			lastTitle = time.Now()
		}
		glfw.PollEvents()
	}
	return glgl.Err()
}

func glfwKey(key glfw.Key) uiKey {
	switch key {
	case glfw.KeyF:
		return keyFrequency
	case glfw.KeyA:
		return keyAmplitude
	case glfw.KeyS:
		return keySpeed
	case glfw.KeySpace:
		return keyPause
	case glfw.KeyR:
		return keyReset
	case glfw.KeyEscape:
		return keyQuit
	}
	return keyNone
}

func startGLFW(width, height int, title string) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	glfw.SwapInterval(1)
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
