package scenedata

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lafriks/go-tiled"
)

// Object group names read from the TMX map.
const (
	GroupSpawns    = "spawns"
	GroupPlatforms = "platforms"
	GroupProps     = "props"
)

// Load parses a TMX map into a Scene. One tile is one world unit. It takes
// an fs.FS so callers can pass embed.FS or os.DirFS.
func Load(fsys fs.FS, tmxPath string) (*Scene, error) {
	m, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", tmxPath, err)
	}
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return nil, fmt.Errorf("load TMX %s: tile size must be positive", tmxPath)
	}

	tw := float64(m.TileWidth)
	th := float64(m.TileHeight)
	toWorld := func(x, y float64) mgl64.Vec3 {
		return mgl64.Vec3{x / tw, 0, y / th}
	}

	s := &Scene{
		Name:  strings.TrimSuffix(filepath.Base(tmxPath), filepath.Ext(tmxPath)),
		Width: float64(m.Width),
		Depth: float64(m.Height),
	}

	for _, og := range m.ObjectGroups {
		switch og.Name {
		case GroupSpawns:
			for _, o := range og.Objects {
				s.Spawns = append(s.Spawns, Spawn{
					Position: toWorld(o.X, o.Y),
					Index:    o.Properties.GetInt("spawnIndex"),
				})
			}
		case GroupPlatforms:
			for _, o := range og.Objects {
				p := Platform{
					Label: o.Name,
					// Tiled anchors rectangles at their top-left corner.
					Position:    toWorld(o.X+o.Width/2, o.Y+o.Height/2),
					HalfExtents: mgl64.Vec3{o.Width / tw / 2, 0.25, o.Height / th / 2},
				}
				if p.Travel, err = vecProp(o.Properties, "travelX", "travelZ"); err != nil {
					return nil, fmt.Errorf("platform %q: %w", o.Name, err)
				}
				p.Position[1], err = floatProp(o.Properties, "height", 0)
				if err != nil {
					return nil, fmt.Errorf("platform %q: %w", o.Name, err)
				}
				if p.LegSeconds, err = floatProp(o.Properties, "legSeconds", 4); err != nil {
					return nil, fmt.Errorf("platform %q: %w", o.Name, err)
				}
				if p.Spin, err = floatProp(o.Properties, "spin", 0); err != nil {
					return nil, fmt.Errorf("platform %q: %w", o.Name, err)
				}
				s.Platforms = append(s.Platforms, p)
			}
		case GroupProps:
			for _, o := range og.Objects {
				s.Props = append(s.Props, Prop{
					Label:     o.Name,
					Position:  toWorld(o.X, o.Y),
					Rigidbody: o.Properties.GetString("rigidbody") == "true",
				})
			}
		}
	}

	// Sort spawns by index for consistent assignment
	sort.SliceStable(s.Spawns, func(i, j int) bool {
		return s.Spawns[i].Index < s.Spawns[j].Index
	})

	return s, nil
}

func floatProp(props tiled.Properties, name string, fallback float64) (float64, error) {
	raw := props.GetString(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("property %s: %w", name, err)
	}
	return v, nil
}

func vecProp(props tiled.Properties, xName, zName string) (mgl64.Vec3, error) {
	x, err := floatProp(props, xName, 0)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	z, err := floatProp(props, zName, 0)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return mgl64.Vec3{x, 0, z}, nil
}

// LoadOrDefault loads tmxPath from fsys, or returns the built-in scene when
// tmxPath is empty.
func LoadOrDefault(fsys fs.FS, tmxPath string) (*Scene, error) {
	if tmxPath == "" {
		return Default(), nil
	}
	return Load(fsys, tmxPath)
}
