package viewer

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/greedyvox/netsync/components"
	"github.com/greedyvox/netsync/config"
	"github.com/greedyvox/netsync/network"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/gamemath"
	"github.com/greedyvox/netsync/shared/messages"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/yohamta/donburi"
)

const (
	gridSpacing     = 4.0 // world units between grid lines
	characterRadius = 0.4
	propRadius      = 0.5
	headingLength   = 0.8
)

const hint = "arrows/WASD move  R respawn  T teleport  1-4 item  Tab targets"

// view maps world XZ to screen pixels around a focus point.
type view struct {
	focus  mgl64.Vec3
	zoom   float64
	width  float64
	height float64
}

func (v view) project(p mgl64.Vec3) (float32, float32) {
	x := (p[0]-v.focus[0])*v.zoom + v.width/2
	y := (p[2]-v.focus[2])*v.zoom + v.height/2
	return float32(x), float32(y)
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(config.Background)
	v := view{
		focus:  g.focus(),
		zoom:   g.settings.Client.Zoom,
		width:  float64(g.settings.Client.Width),
		height: float64(g.settings.Client.Height),
	}
	drawGrid(screen, v)

	if g.replicas != nil {
		entries := g.replicas.All()
		// Platforms first so riders draw on top.
		for _, e := range entries {
			if components.Network.Get(e).Kind == messages.KindPlatform {
				g.drawPlatform(screen, v, e)
			}
		}
		for _, e := range entries {
			switch components.Network.Get(e).Kind {
			case messages.KindProp:
				g.drawProp(screen, v, e)
			case messages.KindCharacter:
				g.drawCharacter(screen, v, e)
			}
		}
	}
	g.drawHUD(screen)
}

// focus follows the local character, or the middle of the replicas before
// it has spawned.
func (g *Game) focus() mgl64.Vec3 {
	if g.character != nil && g.world.Valid(g.character.Entity()) {
		return components.Pose.Get(g.character).Position
	}
	if g.replicas == nil {
		return mgl64.Vec3{}
	}
	var sum mgl64.Vec3
	entries := g.replicas.All()
	for _, e := range entries {
		sum = sum.Add(components.Pose.Get(e).Position)
	}
	if len(entries) == 0 {
		return sum
	}
	return sum.Mul(1 / float64(len(entries)))
}

func drawGrid(screen *ebiten.Image, v view) {
	halfW := v.width / 2 / v.zoom
	halfH := v.height / 2 / v.zoom
	for x := math.Floor((v.focus[0]-halfW)/gridSpacing) * gridSpacing; x <= v.focus[0]+halfW; x += gridSpacing {
		x0, y0 := v.project(mgl64.Vec3{x, 0, v.focus[2] - halfH})
		x1, y1 := v.project(mgl64.Vec3{x, 0, v.focus[2] + halfH})
		vector.StrokeLine(screen, x0, y0, x1, y1, 1, config.Grid, false)
	}
	for z := math.Floor((v.focus[2]-halfH)/gridSpacing) * gridSpacing; z <= v.focus[2]+halfH; z += gridSpacing {
		x0, y0 := v.project(mgl64.Vec3{v.focus[0] - halfW, 0, z})
		x1, y1 := v.project(mgl64.Vec3{v.focus[0] + halfW, 0, z})
		vector.StrokeLine(screen, x0, y0, x1, y1, 1, config.Grid, false)
	}
}

// drawPlatform outlines the platform footprint, rotated with the platform.
func (g *Game) drawPlatform(screen *ebiten.Image, v view, e *donburi.Entry) {
	pose := *components.Pose.Get(e)
	ext := components.Body.Get(e).HalfExtents
	corners := [4]mgl64.Vec3{
		{-ext[0], 0, -ext[2]},
		{ext[0], 0, -ext[2]},
		{ext[0], 0, ext[2]},
		{-ext[0], 0, ext[2]},
	}
	for i := range corners {
		a := pose.TransformPoint(corners[i])
		b := pose.TransformPoint(corners[(i+1)%len(corners)])
		x0, y0 := v.project(a)
		x1, y1 := v.project(b)
		vector.StrokeLine(screen, x0, y0, x1, y1, 2, config.DarkBlue, true)
	}
	g.drawTarget(screen, v, components.Replica.Get(e).Location, propRadius)
	g.drawLabel(screen, v, pose.Position, components.Network.Get(e).Label)
}

func (g *Game) drawProp(screen *ebiten.Image, v view, e *donburi.Entry) {
	pos := components.Pose.Get(e).Position
	body := components.Body.Get(e)
	var clr color.Color = config.Orange
	switch {
	case !body.Active:
		clr = config.Grid
	case body.Rigidbody:
		clr = config.LightRed
	}
	x, y := v.project(pos)
	// Lift props off the ground visually.
	r := float32((propRadius + pos[1]*0.1) * v.zoom)
	vector.FillCircle(screen, x, y, r, clr, true)
	g.drawTarget(screen, v, components.Replica.Get(e).Location, propRadius)
}

func (g *Game) drawCharacter(screen *ebiten.Image, v view, e *donburi.Entry) {
	pose := components.Pose.Get(e)
	var clr color.Color = config.LightBlue
	if g.character != nil && e.Entity() == g.character.Entity() {
		clr = config.Green
	}
	x, y := v.project(pose.Position)
	vector.FillCircle(screen, x, y, float32(characterRadius*v.zoom), clr, true)

	tip := pose.Position.Add(pose.Rotation.Rotate(mgl64.Vec3{0, 0, headingLength}))
	tx, ty := v.project(tip)
	vector.StrokeLine(screen, x, y, tx, ty, 2, config.White, true)

	if !components.Rider.Get(e).OnBoard {
		if tm := components.Replica.Get(e).Transform; tm != nil {
			g.drawSample(screen, v, tm.Interpolator(), characterRadius)
		}
	}
	g.drawLabel(screen, v, pose.Position, components.Network.Get(e).Label)
}

func (g *Game) drawTarget(screen *ebiten.Image, v view, m *replication.LocationMonitor, radius float64) {
	if m == nil {
		return
	}
	g.drawSample(screen, v, m.Interpolator(), radius)
}

// drawSample rings the latest received target of a remote object.
func (g *Game) drawSample(screen *ebiten.Image, v view, in *replication.Interpolator, radius float64) {
	if !g.showTargets || in == nil {
		return
	}
	x, y := v.project(in.Target().Position)
	vector.StrokeCircle(screen, x, y, float32(radius*v.zoom), 1, config.Ghost, true)
}

func (g *Game) drawLabel(screen *ebiten.Image, v view, pos mgl64.Vec3, label string) {
	if label == "" {
		return
	}
	x, y := v.project(pos)
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x)+6, float64(y)-16)
	op.ColorScale.ScaleWithColor(config.White)
	text.Draw(screen, label, g.smallFace, op)
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	status := g.client.State().String()
	if g.client.State() == network.StateJoined && g.replicas != nil {
		status = fmt.Sprintf("observer %d  replicas %d", g.client.ObserverID(), len(g.replicas.All()))
		if g.character != nil && g.world.Valid(g.character.Entity()) {
			yaw := gamemath.QuatToEuler(components.Pose.Get(g.character).Rotation)[1]
			status += fmt.Sprintf("  heading %.0f", yaw)
		}
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(8, 6)
	op.ColorScale.ScaleWithColor(config.White)
	text.Draw(screen, status, g.face, op)

	op = &text.DrawOptions{}
	op.GeoM.Translate(8, float64(g.settings.Client.Height)-20)
	op.ColorScale.ScaleWithColor(config.Ghost)
	text.Draw(screen, hint, g.smallFace, op)
}
