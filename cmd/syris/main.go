// syris - Mesh projection for X-ray imaging
// Project OBJ and glTF meshes or built-in phantoms onto a virtual detector,
// save the thickness map as an image, dump absorption slices, or spin the
// body interactively in the terminal.
//
// Controls (-view):
//
//	Arrows/WASD - Rotate (pitch/yaw)
//	+/-         - Zoom in/out (rescales detector pixels)
//	R           - Reset rotation and zoom
//	Q/Esc       - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/dzbwhut/syris"
	"github.com/dzbwhut/syris/pkg/display"
	"github.com/dzbwhut/syris/pkg/geom"
	"github.com/dzbwhut/syris/pkg/kernel"
	"github.com/dzbwhut/syris/pkg/mesh"
	"github.com/dzbwhut/syris/pkg/phantom"
	"github.com/dzbwhut/syris/pkg/radiograph"
	"github.com/dzbwhut/syris/pkg/units"
)

var (
	objPath     = flag.String("obj", "", "Path to an OBJ mesh")
	objObjects  = flag.String("objects", "", "Comma-separated OBJ object indices to load (default: all)")
	glbPath     = flag.String("glb", "", "Path to a glTF/GLB mesh")
	phantomName = flag.String("phantom", "", "Built-in phantom: cube, box, sphere, cylinder or tumor")
	phantomSize = flag.String("size", "1", "Phantom dimensions, comma separated (cube: edge, box: x,y,z, sphere: radius, cylinder: height,radius, tumor: radius)")
	unitName    = flag.String("unit", "um", "Unit of the input geometry (nm, um, mm, cm, m)")
	centerSpec  = flag.String("center", "none", "Recenter the mesh: none, bbox, gravity, or x,y,z in input units")
	iterations  = flag.Int("iterations", 1, "Crossing pairs accumulated per pixel")
	rotX        = flag.Float64("rx", 0, "Pose rotation about x (degrees)")
	rotY        = flag.Float64("ry", 0, "Pose rotation about y (degrees)")
	rotZ        = flag.Float64("rz", 0, "Pose rotation about z (degrees)")
	transX      = flag.Float64("tx", 0, "Pose translation along x (canonical units)")
	transY      = flag.Float64("ty", 0, "Pose translation along y (canonical units)")
	transZ      = flag.Float64("tz", 0, "Pose translation along z (canonical units)")
	detWidth    = flag.Int("width", 512, "Detector width in pixels")
	detHeight   = flag.Int("height", 512, "Detector height in pixels")
	pixelSize   = flag.String("pixel", "1", "Pixel pitch, one value or x,y")
	pixelUnit   = flag.String("pixel-unit", "um", "Unit of -pixel")
	outPath     = flag.String("o", "", "Output image (.png, .tiff or .webp); with -slices, raw volume dump")
	sliceCount  = flag.Int("slices", 0, "Compute N absorption slices instead of a projection")
	view        = flag.Bool("view", false, "Interactive terminal viewer")
	kernelName  = flag.String("kernel", "cpu", "Projection backend")
	workers     = flag.Int("workers", 0, "Worker goroutines for the cpu backend (0 = GOMAXPROCS)")
	targetFPS   = flag.Int("fps", 30, "Target FPS for -view")
	verbose     = flag.Bool("v", false, "Debug logging to stderr")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syris - Mesh projection for X-ray imaging\n\n")
		fmt.Fprintf(os.Stderr, "Usage: syris [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  syris -phantom cube -size 400 -pixel 1 -o cube.png\n")
		fmt.Fprintf(os.Stderr, "  syris -obj sample.obj -unit mm -center bbox -view\n")
		fmt.Fprintf(os.Stderr, "  syris -glb sample.glb -slices 64 -o sample.raw\n")
		fmt.Fprintf(os.Stderr, "\nControls (-view):\n")
		fmt.Fprintf(os.Stderr, "  Arrows/WASD - Rotate\n")
		fmt.Fprintf(os.Stderr, "  +/-         - Zoom\n")
		fmt.Fprintf(os.Stderr, "  R           - Reset view\n")
		fmt.Fprintf(os.Stderr, "  Q/Esc       - Quit\n")
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *verbose {
		syris.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if *workers != 0 {
		kernel.Register(&kernel.CPU{Workers: *workers})
	}
	if err := kernel.Use(*kernelName); err != nil {
		return err
	}

	soup, label, err := loadGeometry()
	if err != nil {
		return err
	}

	if *view {
		return runViewer(soup, label)
	}

	m, err := buildMesh(soup, nil)
	if err != nil {
		return err
	}
	det, err := buildDetector()
	if err != nil {
		return err
	}
	if *outPath == "" {
		return errors.New("nothing to do: pass -o or -view")
	}

	if *sliceCount > 0 {
		vol, err := m.ComputeSlices(det, *sliceCount)
		if err != nil {
			return err
		}
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := vol.WriteTo(f); err != nil {
			return fmt.Errorf("write volume: %w", err)
		}
		fmt.Printf("Wrote %d slices of %dx%d to %s\n", *sliceCount, det.Width, det.Height, *outPath)
		return nil
	}

	out, err := m.Project(det)
	if err != nil {
		return err
	}
	if err := radiograph.Save(*outPath, out, 0); err != nil {
		return err
	}
	fmt.Printf("Wrote %dx%d projection of %s to %s (max thickness %.4g %s)\n",
		det.Width, det.Height, label, *outPath, out.Max(), units.Canonical)
	return nil
}

// loadGeometry resolves the source flags into a triangle soup and a short
// label for status output.
func loadGeometry() ([]geom.Vec3, string, error) {
	sources := 0
	for _, s := range []string{*objPath, *glbPath, *phantomName} {
		if s != "" {
			sources++
		}
	}
	if sources == 0 {
		return nil, "", errors.New("no geometry: pass -obj, -glb or -phantom")
	}
	if sources > 1 {
		return nil, "", errors.New("pass only one of -obj, -glb and -phantom")
	}

	switch {
	case *objPath != "":
		var opts []mesh.OBJOption
		if *objObjects != "" {
			idx, err := parseInts(*objObjects)
			if err != nil {
				return nil, "", fmt.Errorf("parse -objects: %w", err)
			}
			opts = append(opts, mesh.SelectObjects(idx...))
		}
		soup, err := mesh.LoadOBJ(*objPath, opts...)
		return soup, filepath.Base(*objPath), err
	case *glbPath != "":
		soup, err := mesh.LoadGLTF(*glbPath)
		return soup, filepath.Base(*glbPath), err
	}
	soup, err := buildPhantom()
	return soup, *phantomName + " phantom", err
}

func buildPhantom() ([]geom.Vec3, error) {
	dims, err := parseFloats(*phantomSize)
	if err != nil {
		return nil, fmt.Errorf("parse -size: %w", err)
	}
	want := func(n int) error {
		if len(dims) != n {
			return fmt.Errorf("-phantom %s wants %d size value(s), got %d", *phantomName, n, len(dims))
		}
		return nil
	}
	switch *phantomName {
	case "cube":
		if err := want(1); err != nil {
			return nil, err
		}
		return phantom.Cube(dims[0])
	case "box":
		if err := want(3); err != nil {
			return nil, err
		}
		return phantom.Box(dims[0], dims[1], dims[2])
	case "sphere":
		if err := want(1); err != nil {
			return nil, err
		}
		return phantom.Sphere(dims[0], phantom.DefaultCells)
	case "cylinder":
		if err := want(2); err != nil {
			return nil, err
		}
		return phantom.Cylinder(dims[0], dims[1], phantom.DefaultCells)
	case "tumor":
		if err := want(1); err != nil {
			return nil, err
		}
		return phantom.Tumor(dims[0], phantom.DefaultCells)
	}
	return nil, fmt.Errorf("unknown phantom %q (use cube, box, sphere, cylinder or tumor)", *phantomName)
}

// buildMesh assembles the mesh from the geometry flags. A non-nil pose
// overrides the -rx/-ry/-rz/-tx/-ty/-tz flags; the viewer passes its own.
func buildMesh(soup []geom.Vec3, pose mesh.PoseSource) (*mesh.Mesh, error) {
	u, err := units.Parse(*unitName)
	if err != nil {
		return nil, err
	}
	opts := []mesh.Option{mesh.WithUnit(u), mesh.WithIterations(*iterations)}

	switch *centerSpec {
	case "none":
	case "bbox":
		opts = append(opts, mesh.WithOrigin(mesh.OriginBBox))
	case "gravity":
		opts = append(opts, mesh.WithOrigin(mesh.OriginGravity))
	default:
		pt, err := parseFloats(*centerSpec)
		if err != nil || len(pt) != 3 {
			return nil, errors.New("parse -center: want none, bbox, gravity or x,y,z")
		}
		opts = append(opts, mesh.WithOriginPoint(geom.V3(pt[0], pt[1], pt[2])))
	}

	if pose == nil {
		if pm, ok := poseFromFlags(); ok {
			pose = mesh.FixedPose(pm)
		}
	}
	if pose != nil {
		opts = append(opts, mesh.WithPose(pose))
	}
	return mesh.New(soup, opts...)
}

// poseFromFlags assembles the fixed pose from the rotation and translation
// flags. ok is false when every flag is zero.
func poseFromFlags() (geom.Mat4, bool) {
	if *rotX == 0 && *rotY == 0 && *rotZ == 0 && *transX == 0 && *transY == 0 && *transZ == 0 {
		return geom.Mat4{}, false
	}
	const rad = math.Pi / 180
	m := geom.Translate(geom.V3(*transX, *transY, *transZ)).
		Mul(geom.RotateX(*rotX * rad)).
		Mul(geom.RotateY(*rotY * rad)).
		Mul(geom.RotateZ(*rotZ * rad))
	return m, true
}

func buildDetector() (mesh.Detector, error) {
	pu, err := units.Parse(*pixelUnit)
	if err != nil {
		return mesh.Detector{}, err
	}
	ps, err := parseFloats(*pixelSize)
	if err != nil || len(ps) < 1 || len(ps) > 2 {
		return mesh.Detector{}, errors.New("parse -pixel: want one value or x,y")
	}
	for i := range ps {
		ps[i] = units.Convert(ps[i], pu)
	}
	return mesh.NewDetector(*detHeight, *detWidth, ps...)
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	vals := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// RotationAxis tracks position and velocity for one rotation axis with
// spring decay.
type RotationAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64 // internal spring velocity (for animating Velocity toward 0)
}

// NewRotationAxis creates an axis with harmonica spring for smooth velocity
// decay.
func NewRotationAxis(fps int) RotationAxis {
	return RotationAxis{
		// Frequency 4.0 = moderate speed, damping 1.0 = critically damped (no overshoot)
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Update applies velocity to position and decays velocity toward 0 using
// the spring.
func (a *RotationAxis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// RotationState holds the viewer rotation with harmonica spring physics.
type RotationState struct {
	Pitch, Yaw RotationAxis
	fps        int
}

func NewRotationState(fps int) *RotationState {
	return &RotationState{
		Pitch: NewRotationAxis(fps),
		Yaw:   NewRotationAxis(fps),
		fps:   fps,
	}
}

func (r *RotationState) Update() {
	r.Pitch.Update()
	r.Yaw.Update()
}

func (r *RotationState) ApplyImpulse(pitch, yaw float64) {
	r.Pitch.Velocity += pitch
	r.Yaw.Velocity += yaw
}

func (r *RotationState) Reset() {
	r.Pitch = NewRotationAxis(r.fps)
	r.Yaw = NewRotationAxis(r.fps)
}

// viewPose feeds the frame loop's placement into the projection pipeline.
type viewPose struct {
	m geom.Mat4
}

func (p *viewPose) TransformMatrix(time.Duration, units.Unit) geom.Mat4 { return p.m }

func runViewer(soup []geom.Vec3, label string) error {
	vp := &viewPose{m: geom.Identity()}
	m, err := buildMesh(soup, vp)
	if err != nil {
		return err
	}

	bbox := m.BoundingBox()
	center := bbox.Center()
	size := bbox.Size()
	maxDim := math.Max(size.X, math.Max(size.Y, size.Z))
	if maxDim <= 0 {
		maxDim = 1
	}

	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Context for clean shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	rotation := NewRotationState(*targetFPS)
	const rad = math.Pi / 180
	rotation.Pitch.Position = *rotX * rad
	rotation.Yaw.Position = *rotY * rad

	// Input state
	inputTorque := struct{ pitch, yaw float64 }{}
	const torqueStrength = 3.0
	zoom := 1.0

	// Event handler
	go func() {
		for ev := range term.Events() {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				width, height = ev.Width, ev.Height
				term.Erase()
				term.Resize(width, height)

			case uv.KeyPressEvent:
				switch {
				case ev.MatchString("escape"), ev.MatchString("q"), ev.MatchString("ctrl+c"):
					cancel()
					return
				case ev.MatchString("w", "up"):
					inputTorque.pitch = -torqueStrength
				case ev.MatchString("s", "down"):
					inputTorque.pitch = torqueStrength
				case ev.MatchString("a", "left"):
					inputTorque.yaw = -torqueStrength
				case ev.MatchString("d", "right"):
					inputTorque.yaw = torqueStrength
				case ev.MatchString("+", "="):
					zoom = math.Max(0.125, zoom/1.25)
				case ev.MatchString("-", "_"):
					zoom = math.Min(8, zoom*1.25)
				case ev.MatchString("r"):
					rotation.Reset()
					zoom = 1.0
				}

			case uv.KeyReleaseEvent:
				switch {
				case ev.MatchString("w"), ev.MatchString("up"), ev.MatchString("s"), ev.MatchString("down"):
					inputTorque.pitch = 0
				case ev.MatchString("a"), ev.MatchString("left"), ev.MatchString("d"), ev.MatchString("right"):
					inputTorque.yaw = 0
				}
			}
		}
	}()

	// Main loop
	targetDuration := time.Second / time.Duration(*targetFPS)
	lastFrame := time.Now()

	cleanup := func() {
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}

	var frame *radiograph.Map
	for {
		select {
		case <-ctx.Done():
			cleanup()
			return nil
		default:
		}

		now := time.Now()
		dt := now.Sub(lastFrame).Seconds()
		lastFrame = now

		if dt > 0.1 {
			dt = 0.1
		}

		// Apply input torque and decay it (key release events unreliable)
		rotation.ApplyImpulse(inputTorque.pitch*dt, inputTorque.yaw*dt)
		inputTorque.pitch *= 0.9
		inputTorque.yaw *= 0.9

		// Update springs (harmonica handles timing internally)
		rotation.Update()

		// Detector sized to the terminal: each cell is one pixel wide and
		// two pixels tall.
		cols, rows := width, 2*height
		if cols < 1 {
			cols = 1
		}
		if rows < 2 {
			rows = 2
		}
		px := maxDim * 1.4 / math.Min(float64(cols), float64(rows)) * zoom
		det, err := mesh.NewDetector(rows, cols, px)
		if err != nil {
			cleanup()
			return err
		}
		fovY, fovX := det.FOV()

		// The body spins about its own bounding-box centre and sits in the
		// middle of the field of view. The pose maps detector coordinates
		// onto the body, so it gets the inverse of that placement.
		placement := geom.Translate(geom.V3(fovX/2, fovY/2, 0)).
			Mul(geom.RotateX(rotation.Pitch.Position)).
			Mul(geom.RotateY(rotation.Yaw.Position)).
			Mul(geom.Translate(center.Negate()))
		inv, err := placement.Inverse()
		if err != nil {
			cleanup()
			return err
		}
		vp.m = inv

		if frame == nil || frame.Width != cols || frame.Height != rows {
			frame = radiograph.NewMap(rows, cols)
		}
		frame.Reset()
		if _, err := m.Project(det, mesh.Into(frame)); err != nil {
			cleanup()
			return err
		}

		if err := display.Render(os.Stdout, frame, maxDim); err != nil {
			cleanup()
			return fmt.Errorf("render: %w", err)
		}

		// Status overlay on the top row
		fmt.Printf("\x1b[1;1H\x1b[0;97;40m %s | %d triangles | zoom %.2fx | q quits \x1b[0m",
			label, m.NumTriangles(), 1/zoom)

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
